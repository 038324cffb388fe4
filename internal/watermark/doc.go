// Package watermark implements the native watermarking engine: it decodes an
// input image, composites a prepared mark bitmap over it (single placement or
// tiled, with opacity and rotation), and re-encodes the result as PNG. The
// package also provides the option builder that normalizes caller-supplied
// options into a canonical Config, plus stateless byte-conversion helpers
// (data-URL decoding, format sniffing).
package watermark
