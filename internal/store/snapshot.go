package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jward/shobo/internal/history"
)

// Snapshot wire format:
//
//	{
//	  "<user id>": {
//	    "name": "first last",
//	    "first_name": "first",
//	    "last_name": "last",
//	    "history": {
//	      "<operation id>": [product name, price, added, purchased, reversed id?]
//	    }
//	  }
//	}
//
// Object keys are decoded in document order, which becomes the user order
// and each history's insertion order.

// snapshotUser is the decoded value of one user entry. Pointers distinguish
// absent fields from zero values.
type snapshotUser struct {
	Name      *string         `json:"name"`
	FirstName *string         `json:"first_name"`
	LastName  *string         `json:"last_name"`
	History   json.RawMessage `json:"history"`
}

// LoadFile reads a snapshot from path.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a full snapshot and builds a Store from it. Every structural
// or consistency problem is reported as a *LoadError.
func Load(r io.Reader) (*Store, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, &LoadError{Reason: "snapshot must be an object", Err: err}
	}

	var users []*User
	seen := make(map[string]bool)
	for dec.More() {
		id, err := readKey(dec)
		if err != nil {
			return nil, &LoadError{Reason: "read user id", Err: err}
		}
		if seen[id] {
			return nil, &LoadError{UserID: id, Reason: "duplicate user id"}
		}
		seen[id] = true

		var raw snapshotUser
		if err := dec.Decode(&raw); err != nil {
			return nil, &LoadError{UserID: id, Reason: "decode user", Err: err}
		}
		u, err := decodeUser(id, raw)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, &LoadError{Reason: "unterminated snapshot", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &LoadError{Reason: "trailing data after snapshot"}
	}

	return New(users...)
}

func decodeUser(id string, raw snapshotUser) (*User, error) {
	switch {
	case raw.FirstName == nil:
		return nil, &LoadError{UserID: id, Reason: "missing first_name"}
	case raw.LastName == nil:
		return nil, &LoadError{UserID: id, Reason: "missing last_name"}
	case len(raw.History) == 0 || string(raw.History) == "null":
		return nil, &LoadError{UserID: id, Reason: "missing history"}
	}

	u := NewUser(id, *raw.FirstName, *raw.LastName)
	dec := json.NewDecoder(bytes.NewReader(raw.History))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, &LoadError{UserID: id, Reason: "history must be an object", Err: err}
	}
	for dec.More() {
		opID, err := readKey(dec)
		if err != nil {
			return nil, &LoadError{UserID: id, Reason: "read operation id", Err: err}
		}
		var fields []json.RawMessage
		if err := dec.Decode(&fields); err != nil {
			return nil, &LoadError{UserID: id, OperationID: opID, Reason: "operation must be an array", Err: err}
		}
		op, err := decodeOperation(opID, fields)
		if err != nil {
			return nil, &LoadError{UserID: id, OperationID: opID, Err: err}
		}
		if err := u.History.Add(op); err != nil {
			return nil, &LoadError{UserID: id, OperationID: opID, Err: err}
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, &LoadError{UserID: id, Reason: "unterminated history", Err: err}
	}
	return u, nil
}

// decodeOperation validates the positional record
// [name, price, added, purchased, reversed id?] into an Operation.
func decodeOperation(id string, fields []json.RawMessage) (history.Operation, error) {
	op := history.Operation{ID: id}
	if len(fields) != 4 && len(fields) != 5 {
		return op, fmt.Errorf("operation record has %d fields, want 4 or 5", len(fields))
	}
	for i, name := range requiredFields {
		if isNull(fields[i]) {
			return op, fmt.Errorf("missing %s", name)
		}
	}
	if err := json.Unmarshal(fields[0], &op.ProductName); err != nil {
		return op, fmt.Errorf("product name: %w", err)
	}
	if err := json.Unmarshal(fields[1], &op.Price); err != nil {
		return op, fmt.Errorf("price: %w", err)
	}
	var isAdded bool
	if err := json.Unmarshal(fields[2], &isAdded); err != nil {
		return op, fmt.Errorf("added flag: %w", err)
	}
	if isAdded {
		op.Kind = history.Added
	} else {
		op.Kind = history.Removed
	}
	if err := json.Unmarshal(fields[3], &op.Purchased); err != nil {
		return op, fmt.Errorf("purchased flag: %w", err)
	}
	if len(fields) == 5 {
		if err := json.Unmarshal(fields[4], &op.ReversedID); err != nil {
			return op, fmt.Errorf("reversed id: %w", err)
		}
	}
	return op, nil
}

// requiredFields names the leading record elements that may not be null.
var requiredFields = [...]string{"product name", "price", "added flag", "purchased flag"}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// Encode writes the full store as an indented snapshot, preserving user and
// history order.
func (s *Store) Encode(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, u := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeUser(&buf, u); err != nil {
			return fmt.Errorf("encode user %q: %w", u.ID, err)
		}
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "    "); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}

func encodeUser(buf *bytes.Buffer, u *User) error {
	writeJSON := func(v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}

	if err := writeJSON(u.ID); err != nil {
		return err
	}
	buf.WriteString(`:{"name":`)
	if err := writeJSON(u.Name()); err != nil {
		return err
	}
	buf.WriteString(`,"first_name":`)
	if err := writeJSON(u.FirstName); err != nil {
		return err
	}
	buf.WriteString(`,"last_name":`)
	if err := writeJSON(u.LastName); err != nil {
		return err
	}
	buf.WriteString(`,"history":{`)
	first := true
	for op := range u.History.All() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := writeJSON(op.ID); err != nil {
			return err
		}
		buf.WriteByte(':')
		record := []any{op.ProductName, op.Price, op.Kind == history.Added, op.Purchased}
		if op.ReversedID != nil {
			record = append(record, *op.ReversedID)
		}
		if err := writeJSON(record); err != nil {
			return err
		}
	}
	buf.WriteString("}}")
	return nil
}

// SaveFile writes the snapshot to path. It refuses to write over inputPath,
// the file the store was loaded from. The write goes through a temporary
// file in the same directory and is renamed into place.
func (s *Store) SaveFile(path, inputPath string) error {
	if inputPath != "" {
		same, err := samePath(path, inputPath)
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		if same {
			return fmt.Errorf("save snapshot %s: %w", path, ErrUnsafeOutput)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save snapshot: creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.Encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// samePath reports whether a and b name the same file, either lexically
// after resolving to absolute paths or, when both exist, by inode.
func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	if absA == absB {
		return true, nil
	}
	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	if errors.Is(errA, os.ErrNotExist) || errors.Is(errB, os.ErrNotExist) {
		return false, nil
	}
	if errA != nil {
		return false, errA
	}
	if errB != nil {
		return false, errB
	}
	return os.SameFile(infoA, infoB), nil
}
