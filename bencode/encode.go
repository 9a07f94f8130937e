package bencode

import (
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Encoder writes bencoded values to an underlying io.Writer.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes the bencoded form of v.
//
// Supported types: string, []byte, int, int64, uint, uint32, uint64, Dict,
// and []interface{} (a bencode list). Any other type is a programmer error
// and returns an error rather than panicking.
func (e *Encoder) Encode(v interface{}) error {
	return e.encodeValue(v)
}

func (e *Encoder) encodeValue(v interface{}) error {
	switch val := v.(type) {
	case string:
		return e.encodeString(val)
	case []byte:
		return e.encodeString(string(val))
	case int:
		return e.encodeInt(int64(val))
	case int64:
		return e.encodeInt(val)
	case uint:
		return e.encodeInt(int64(val))
	case uint32:
		return e.encodeInt(int64(val))
	case uint64:
		return e.encodeInt(int64(val))
	case Dict:
		return e.encodeDict(val)
	case []interface{}:
		return e.encodeList(val)
	default:
		return fmt.Errorf("bencode: cannot encode value of type %T", v)
	}
}

func (e *Encoder) encodeString(s string) error {
	if _, err := io.WriteString(e.w, strconv.Itoa(len(s))+":"); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, s)
	return err
}

func (e *Encoder) encodeInt(n int64) error {
	_, err := io.WriteString(e.w, "i"+strconv.FormatInt(n, 10)+"e")
	return err
}

func (e *Encoder) encodeList(l []interface{}) error {
	if _, err := io.WriteString(e.w, "l"); err != nil {
		return err
	}
	for _, item := range l {
		if err := e.encodeValue(item); err != nil {
			return err
		}
	}
	_, err := io.WriteString(e.w, "e")
	return err
}

// encodeDict always writes keys in lexicographic order over the raw key
// bytes, satisfying the BEP 3 requirement and the P10 round-trip invariant.
func (e *Encoder) encodeDict(d Dict) error {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if _, err := io.WriteString(e.w, "d"); err != nil {
		return err
	}
	for _, k := range keys {
		if err := e.encodeString(k); err != nil {
			return err
		}
		if err := e.encodeValue(d[k]); err != nil {
			return err
		}
	}
	_, err := io.WriteString(e.w, "e")
	return err
}
