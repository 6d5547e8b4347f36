package proxyserver

import "net/http"

// handleReverseProxy byte-proxies any path other than
// POST /v1/messages to Anthropic unchanged, headers and
// status preserved. httputil.ReverseProxy copies the response body via a
// bounded io.Copy buffer rather than reading it fully into memory first,
// so large bodies are streamed rather than buffered without any extra
// code here.
func (s *Server) handleReverseProxy(w http.ResponseWriter, r *http.Request) {
	s.reverseProxy.ServeHTTP(w, r)
}
