package config

// Static adapts a fixed Registry to the same Current() shape Watcher
// exposes, so a caller that never needs hot reload can hand the proxy
// server a RegistryProvider without depending on fsnotify at all.
type Static struct {
	reg *Registry
}

// NewStatic wraps reg for callers that want a non-reloading provider.
func NewStatic(reg *Registry) *Static {
	return &Static{reg: reg}
}

// Current always returns the same Registry passed to NewStatic.
func (s *Static) Current() *Registry {
	return s.reg
}
