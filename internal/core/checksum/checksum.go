package checksum

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
)

// Algorithm represents the hashing algorithm to use
type Algorithm string

const (
	// MD5 algorithm (fast, sufficient for content comparison)
	MD5 Algorithm = "md5"
	// SHA256 algorithm (slower, collision resistant)
	SHA256 Algorithm = "sha256"
)

// Result classifies the outcome of comparing two streams. Read failures
// are attributed to a side so the caller can apply its own policy per
// side (an unreadable source must never cause a destination rewrite).
type Result int

const (
	// Equal indicates both streams carry identical content
	Equal Result = iota
	// Different indicates the streams differ in length or content
	Different
	// SourceError indicates the source stream failed mid-read
	SourceError
	// DestError indicates the destination stream failed mid-read
	DestError
)

// Options configures the stream comparer
type Options struct {
	// BlockSize: size of the lock-step read blocks
	// Default: 16KB
	BlockSize int

	// Algorithm: digest used for the running comparison
	// Default: MD5
	Algorithm Algorithm
}

// DefaultOptions returns the recommended default options
func DefaultOptions() Options {
	return Options{
		BlockSize: 16 * 1024,
		Algorithm: MD5,
	}
}

// Comparer decides content equality of two streams without holding
// either in memory, by feeding both through a running digest in
// fixed-size lock-step blocks.
type Comparer struct {
	opts Options
}

// NewComparer creates a new comparer with the given options
func NewComparer(opts Options) (*Comparer, error) {
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultOptions().BlockSize
	}
	if opts.Algorithm == "" {
		opts.Algorithm = MD5
	}
	if !IsSupported(opts.Algorithm) {
		return nil, fmt.Errorf("unsupported algorithm: %s", opts.Algorithm)
	}
	return &Comparer{opts: opts}, nil
}

// NewDefaultComparer creates a comparer with default options
func NewDefaultComparer() *Comparer {
	c, _ := NewComparer(DefaultOptions())
	return c
}

// newHash builds the hasher for the configured algorithm
func (c *Comparer) newHash() hash.Hash {
	switch c.opts.Algorithm {
	case SHA256:
		return sha256.New()
	default:
		return md5.New()
	}
}

// Compare reads src and dest in lock-step blocks, updating one digest
// per side, and reports whether the final digests match. It stops early
// when one stream ends before the other or when the digests over an
// equally-long prefix already diverge.
func (c *Comparer) Compare(ctx context.Context, src, dest io.Reader) (Result, error) {
	srcSum := c.newHash()
	destSum := c.newHash()

	srcBuf := make([]byte, c.opts.BlockSize)
	destBuf := make([]byte, c.opts.BlockSize)

	srcDone := false
	destDone := false

	for !(srcDone && destDone) {
		select {
		case <-ctx.Done():
			return Different, ctx.Err()
		default:
		}

		var nSrc, nDest int

		if !srcDone {
			n, err := io.ReadFull(src, srcBuf)
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				srcDone = true
			} else if err != nil {
				return SourceError, fmt.Errorf("reading source: %w", err)
			}
			if n > 0 {
				srcSum.Write(srcBuf[:n])
			}
			nSrc = n
		}

		if !destDone {
			n, err := io.ReadFull(dest, destBuf)
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				destDone = true
			} else if err != nil {
				return DestError, fmt.Errorf("reading destination: %w", err)
			}
			if n > 0 {
				destSum.Write(destBuf[:n])
			}
			nDest = n
		}

		// One side ran out before the other: lengths differ
		if nSrc != nDest {
			return Different, nil
		}

		// Both sides have consumed the same prefix; if the running
		// digests already diverge there is no point reading on
		if !bytes.Equal(srcSum.Sum(nil), destSum.Sum(nil)) {
			return Different, nil
		}
	}

	if !bytes.Equal(srcSum.Sum(nil), destSum.Sum(nil)) {
		return Different, nil
	}
	return Equal, nil
}

// IsSupported checks if the given algorithm is supported
func IsSupported(algo Algorithm) bool {
	switch algo {
	case MD5, SHA256:
		return true
	default:
		return false
	}
}
