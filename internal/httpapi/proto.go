package httpapi

import (
	"mime"
	"net/http"
)

// maxRequestBody caps the request body size for both protobuf and JSON
// payloads.
const maxRequestBody = 64 << 10

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload. Constrained bridges send "application/x-protobuf".
func isProtobuf(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return ct == "application/x-protobuf" ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}
