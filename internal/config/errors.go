package config

import "errors"

var (
	ErrInvalidHeaderFormat       = errors.New(`invalid header, expected "Name: Value" (missing colon)`)
	ErrInvalidHeaderName         = errors.New("invalid header name")
	ErrInvalidHeaderValue        = errors.New("invalid header value")
	ErrInvalidURL                = errors.New("invalid URL")
	ErrInvalidMethod             = errors.New("invalid HTTP method")
	ErrInvalidRate               = errors.New("invalid requests per second, expected a decimal number")
	ErrInvalidDuration           = errors.New("duration must be at least 1 second")
	ErrInvalidMaxTime            = errors.New("max-time must be at least 1 second")
	ErrInvalidConnectTimeout     = errors.New("connect-timeout must not be negative")
	ErrMutuallyExclusiveProtocol = errors.New("http1.1 and http2-prior-knowledge are mutually exclusive")
	ErrSpecifyProtocol           = errors.New("specify either --http1.1 or --http2-prior-knowledge")
	ErrUploadFileAndData         = errors.New("upload-file and data are mutually exclusive")
	ErrCertWithoutKey            = errors.New("if --cert is provided, --key must also be provided")
	ErrKeyWithoutCert            = errors.New("if --key is provided, --cert must also be provided")
	ErrReadFile                  = errors.New("failed to read file")
	ErrParseCACert               = errors.New("failed to parse CA certificate PEM file")
	ErrParseIdentity             = errors.New("failed to parse identity PEM file")
)
