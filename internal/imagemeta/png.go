package imagemeta

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ErrNotPNG is returned for data without a PNG signature.
var ErrNotPNG = errors.New("imagemeta: not a png")

const maxTextChunk = 16 << 20

// TextChunks returns the keyword/text pairs stored in tEXt, zTXt and iTXt chunks.
// The first occurrence of a keyword wins.
func TextChunks(data []byte) (map[string]string, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, ErrNotPNG
	}
	out := make(map[string]string)
	r := bytes.NewReader(data[len(pngSignature):])
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("imagemeta: truncated chunk header: %w", err)
		}
		length := binary.BigEndian.Uint32(header[:4])
		kind := string(header[4:8])
		if int64(length) > int64(r.Len()) {
			return out, fmt.Errorf("imagemeta: chunk %s overruns file", kind)
		}
		switch kind {
		case "tEXt", "zTXt", "iTXt":
			body := make([]byte, length)
			if _, err := io.ReadFull(r, body); err != nil {
				return out, fmt.Errorf("imagemeta: read %s: %w", kind, err)
			}
			keyword, text, err := decodeText(kind, body)
			if err != nil {
				return out, err
			}
			if _, seen := out[keyword]; !seen {
				out[keyword] = text
			}
		default:
			if _, err := r.Seek(int64(length), io.SeekCurrent); err != nil {
				return out, err
			}
		}
		// crc
		if _, err := r.Seek(4, io.SeekCurrent); err != nil {
			return out, err
		}
		if kind == "IEND" {
			return out, nil
		}
	}
}

func decodeText(kind string, body []byte) (string, string, error) {
	keyword, rest, ok := bytes.Cut(body, []byte{0})
	if !ok {
		return "", "", fmt.Errorf("imagemeta: %s chunk without keyword terminator", kind)
	}
	switch kind {
	case "tEXt":
		return string(keyword), latin1(rest), nil
	case "zTXt":
		if len(rest) < 1 {
			return "", "", fmt.Errorf("imagemeta: short zTXt chunk")
		}
		text, err := inflate(rest[1:])
		if err != nil {
			return "", "", err
		}
		return string(keyword), latin1(text), nil
	default:
		if len(rest) < 2 {
			return "", "", fmt.Errorf("imagemeta: short iTXt chunk")
		}
		compressed := rest[0] == 1
		rest = rest[2:]
		// language tag, then translated keyword
		for i := 0; i < 2; i++ {
			_, after, found := bytes.Cut(rest, []byte{0})
			if !found {
				return "", "", fmt.Errorf("imagemeta: malformed iTXt chunk")
			}
			rest = after
		}
		if compressed {
			text, err := inflate(rest)
			if err != nil {
				return "", "", err
			}
			return string(keyword), string(text), nil
		}
		return string(keyword), string(rest), nil
	}
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imagemeta: inflate: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxTextChunk))
	if err != nil {
		return nil, fmt.Errorf("imagemeta: inflate: %w", err)
	}
	return out, nil
}

func latin1(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
