// SPDX-License-Identifier: MIT

// Package compress decodes upstream response bodies. It handles the four
// encodings media CDNs actually emit (gzip, brotli, zstd, deflate),
// auto-detects by magic bytes when no encoding is declared, and falls back
// across codecs when a declared encoding turns out to be a lie.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Content-Encoding values understood by this package.
const (
	EncodingGzip    = "gzip"
	EncodingBrotli  = "br"
	EncodingZstd    = "zstd"
	EncodingDeflate = "deflate"
)

// ErrAllCodecsFailed is returned when an explicitly requested decode and
// every cross-codec fallback failed.
var ErrAllCodecsFailed = errors.New("all decompression codecs failed")

// fallbackOrder is the cross-encoding retry order after a declared codec
// fails; the codec that just failed is skipped.
var fallbackOrder = []string{EncodingZstd, EncodingGzip, EncodingBrotli, EncodingDeflate}

// Shared zstd decoder; safe for concurrent DecodeAll use.
var zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

// Normalize maps a Content-Encoding header value to a canonical encoding
// name, or "" when the value is unknown or identity.
func Normalize(encoding string) string {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		return EncodingGzip
	case "br", "brotli":
		return EncodingBrotli
	case "zstd":
		return EncodingZstd
	case "deflate":
		return EncodingDeflate
	default:
		return ""
	}
}

// IsCompressed reports whether the data starts with a known compression
// magic sequence (gzip or zstd; brotli and deflate have no reliable magic).
func IsCompressed(data []byte) bool {
	return sniffEncoding(data) != ""
}

func sniffEncoding(data []byte) string {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return EncodingGzip
	}
	if len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd {
		return EncodingZstd
	}
	return ""
}

// Decompress decodes data. When declaredEncoding is non-empty that codec is
// attempted first and, on failure, every other codec once; if everything
// fails the original bytes are returned together with ErrAllCodecsFailed.
// When declaredEncoding is empty the encoding is auto-detected and failure
// is silent: the original bytes come back with a nil error.
func Decompress(data []byte, declaredEncoding string) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	declared := Normalize(declaredEncoding)
	if declared == "" {
		return autoDetect(data), nil
	}

	if out, err := decode(data, declared); err == nil {
		return out, nil
	}
	for _, codec := range fallbackOrder {
		if codec == declared {
			continue
		}
		if out, err := decode(data, codec); err == nil {
			return out, nil
		}
	}
	return data, fmt.Errorf("%w (declared %q)", ErrAllCodecsFailed, declared)
}

// autoDetect decodes by magic bytes, then tries brotli and deflate blind.
// Plain data passes through untouched.
func autoDetect(data []byte) []byte {
	if codec := sniffEncoding(data); codec != "" {
		if out, err := decode(data, codec); err == nil {
			return out
		}
		return data
	}
	if out, err := decode(data, EncodingBrotli); err == nil {
		return out
	}
	if out, err := decode(data, EncodingDeflate); err == nil {
		return out
	}
	return data
}

func decode(data []byte, codec string) ([]byte, error) {
	switch codec {
	case EncodingGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)

	case EncodingBrotli:
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, err
		}
		// brotli.Reader happily decodes some plain text to garbage; an
		// empty result for non-empty input means the stream was not brotli.
		if len(out) == 0 && len(data) > 0 {
			return nil, errors.New("brotli: empty output")
		}
		return out, nil

	case EncodingZstd:
		return zstdDecoder.DecodeAll(data, nil)

	case EncodingDeflate:
		// Deflate in the wild is ambiguous: RFC 1950 zlib framing or raw
		// RFC 1951 streams. Try zlib first.
		if r, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
			defer r.Close()
			if out, err := io.ReadAll(r); err == nil {
				return out, nil
			}
		}
		fr := flate.NewReader(bytes.NewReader(data))
		defer fr.Close()
		out, err := io.ReadAll(fr)
		if err != nil {
			return nil, err
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown codec %q", codec)
	}
}
