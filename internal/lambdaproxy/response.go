package lambdaproxy

import (
	"bytes"
	"encoding/base64"
	"mime"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// responseWriter buffers a handler's response for conversion into an API
// Gateway response.
type responseWriter struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: make(http.Header)}
}

func (w *responseWriter) Header() http.Header {
	return w.header
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(p)
}

func (w *responseWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// encodedBody returns the body, base64 encoded unless the content type is
// textual.
func (w *responseWriter) encodedBody() (string, bool) {
	if w.body.Len() == 0 || isTextual(w.header.Get("Content-Type")) {
		return w.body.String(), false
	}
	return base64.StdEncoding.EncodeToString(w.body.Bytes()), true
}

func (w *responseWriter) v1Response() events.APIGatewayProxyResponse {
	body, isBase64 := w.encodedBody()
	return events.APIGatewayProxyResponse{
		StatusCode:        w.statusCode(),
		Headers:           singleValueHeaders(w.header),
		MultiValueHeaders: map[string][]string(w.header.Clone()),
		Body:              body,
		IsBase64Encoded:   isBase64,
	}
}

func (w *responseWriter) v2Response() events.APIGatewayV2HTTPResponse {
	header := w.header.Clone()
	cookies := header.Values("Set-Cookie")
	header.Del("Set-Cookie")

	body, isBase64 := w.encodedBody()
	return events.APIGatewayV2HTTPResponse{
		StatusCode:      w.statusCode(),
		Headers:         singleValueHeaders(header),
		Body:            body,
		IsBase64Encoded: isBase64,
		Cookies:         cookies,
	}
}

func singleValueHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[k] = strings.Join(vs, ",")
	}
	return out
}

func isTextual(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case strings.HasSuffix(mediaType, "json"), strings.HasSuffix(mediaType, "xml"):
		return true
	case mediaType == "application/javascript", mediaType == "application/x-www-form-urlencoded":
		return true
	}
	return false
}
