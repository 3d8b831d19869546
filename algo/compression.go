package algo

import (
	"compress/zlib"
	"io"
)

// CompressionSpec describes one negotiable compression method. NewReader
// and NewWriter wrap a byte stream; "none" is a transparent passthrough.
type CompressionSpec struct {
	Name      string
	NewReader func(r io.Reader) (io.Reader, error)
	NewWriter func(w io.Writer) io.WriteCloser
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Compressions is this core's compression-method registry. No
// third-party compression library appears anywhere in the example
// pack (grep across every go.mod in _examples/ turned up none), so
// this is the one concern in the domain stack that stays on the
// standard library by necessity rather than by choice: compress/zlib
// implements the DEFLATE container both "zlib" (RFC 4253 §6.2, the
// baseline name) and "zlib@openssh.com" (the delayed-compression
// variant; this core doesn't delay compression until after
// authentication, so the two names share one implementation) name on
// the wire.
func zlibSpec(name string) CompressionSpec {
	return CompressionSpec{
		Name: name,
		NewReader: func(r io.Reader) (io.Reader, error) {
			return zlib.NewReader(r)
		},
		NewWriter: func(w io.Writer) io.WriteCloser {
			return zlib.NewWriter(w)
		},
	}
}

var Compressions = map[string]CompressionSpec{
	"none": {
		Name:      "none",
		NewReader: func(r io.Reader) (io.Reader, error) { return r, nil },
		NewWriter: func(w io.Writer) io.WriteCloser { return nopWriteCloser{w} },
	},
	"zlib":             zlibSpec("zlib"),
	"zlib@openssh.com": zlibSpec("zlib@openssh.com"),
}

// CompressionByName looks up a negotiated compression method name.
func CompressionByName(name string) (CompressionSpec, error) {
	spec, ok := Compressions[name]
	if !ok {
		return CompressionSpec{}, ErrUnknownAlgorithm{Category: "compression", Name: name}
	}
	return spec, nil
}
