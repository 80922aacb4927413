package lambdaproxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

func requestFromV1(ctx context.Context, event *events.APIGatewayProxyRequest) (*http.Request, error) {
	u := &url.URL{Path: event.Path}
	if u.Path == "" {
		u.Path = "/"
	}

	query := url.Values{}
	if len(event.MultiValueQueryStringParameters) > 0 {
		for k, vs := range event.MultiValueQueryStringParameters {
			for _, v := range vs {
				query.Add(k, v)
			}
		}
	} else {
		for k, v := range event.QueryStringParameters {
			query.Set(k, v)
		}
	}
	u.RawQuery = query.Encode()

	body, err := decodeBody(event.Body, event.IsBase64Encoded)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, u.String(), body)
	if err != nil {
		return nil, err
	}

	if len(event.MultiValueHeaders) > 0 {
		for k, vs := range event.MultiValueHeaders {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	} else {
		for k, v := range event.Headers {
			req.Header.Set(k, v)
		}
	}

	finishRequest(req, event.RequestContext.Identity.SourceIP)
	return req, nil
}

func requestFromV2(ctx context.Context, event *events.APIGatewayV2HTTPRequest) (*http.Request, error) {
	path := event.RawPath
	if path == "" {
		path = event.RequestContext.HTTP.Path
	}
	if path == "" {
		path = "/"
	}

	u, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	u.RawQuery = event.RawQueryString

	body, err := decodeBody(event.Body, event.IsBase64Encoded)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, event.RequestContext.HTTP.Method, u.String(), body)
	if err != nil {
		return nil, err
	}

	// v2 folds repeated headers into one comma-separated value.
	for k, v := range event.Headers {
		req.Header.Set(k, v)
	}
	if len(event.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(event.Cookies, "; "))
	}

	finishRequest(req, event.RequestContext.HTTP.SourceIP)
	return req, nil
}

func decodeBody(body string, isBase64 bool) (io.Reader, error) {
	if body == "" {
		return http.NoBody, nil
	}
	if !isBase64 {
		return strings.NewReader(body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 body: %w", err)
	}
	return bytes.NewReader(decoded), nil
}

// finishRequest sets the fields a net/http server would have filled in.
// RemoteAddr is the caller address as seen by API Gateway, never a
// forwarding header.
func finishRequest(req *http.Request, sourceIP string) {
	req.RemoteAddr = sourceIP
	req.RequestURI = req.URL.RequestURI()
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}
}
