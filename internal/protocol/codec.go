package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	apperrors "github.com/anhducle98/simple-search/pkg/errors"
)

// DefaultMaxFrameBytes bounds a single encoded envelope, newline excluded.
const DefaultMaxFrameBytes = 1 << 20

// Encoder writes envelopes as newline-terminated JSON frames.
type Encoder struct {
	w   io.Writer
	max int
}

func NewEncoder(w io.Writer, maxFrameBytes int) *Encoder {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	return &Encoder{w: w, max: maxFrameBytes}
}

// Encode validates env and writes it as one frame. A frame longer than the
// limit is rejected before anything is written.
func (e *Encoder) Encode(env Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling %s envelope: %w", env.Kind, err)
	}
	if len(data) > e.max {
		return fmt.Errorf("encoding %s envelope of %d bytes (limit %d): %w",
			env.Kind, len(data), e.max, apperrors.ErrFrameTooLarge)
	}
	data = append(data, '\n')
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Decoder reads newline-terminated JSON frames.
type Decoder struct {
	r   *bufio.Reader
	max int
	buf []byte
}

func NewDecoder(r io.Reader, maxFrameBytes int) *Decoder {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	return &Decoder{r: bufio.NewReader(r), max: maxFrameBytes}
}

// Decode reads the next frame into env. It returns io.EOF at a clean frame
// boundary, io.ErrUnexpectedEOF for a truncated frame, and ErrFrameTooLarge
// as soon as a frame grows past the limit.
func (d *Decoder) Decode(env *Envelope) error {
	d.buf = d.buf[:0]
	for {
		chunk, err := d.r.ReadSlice('\n')
		d.buf = append(d.buf, chunk...)
		if len(d.buf) > d.max+1 {
			return fmt.Errorf("decoding frame of more than %d bytes: %w", d.max, apperrors.ErrFrameTooLarge)
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(d.buf) == 0 {
				return io.EOF
			}
			return io.ErrUnexpectedEOF
		}
		return err
	}

	frame := d.buf[:len(d.buf)-1]
	*env = Envelope{}
	if err := json.Unmarshal(frame, env); err != nil {
		return apperrors.Protocolf("malformed frame: %v", err)
	}
	return env.Validate()
}
