package linear

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/macneib/PolyVectorDB/model"
)

type gobEntry struct {
	ID     model.EntityID
	Vector []float32
}

// GobEncode serializes the live entries. Free slots are not preserved;
// a decoded index starts compact.
func (l *Linear) GobEncode() ([]byte, error) {
	st := l.state.Load()

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(l.opts); err != nil {
		return nil, fmt.Errorf("linear: encode options: %w", err)
	}

	entries := make([]gobEntry, 0, st.live)
	for _, e := range st.slots {
		if e == nil {
			continue
		}
		entries = append(entries, gobEntry{ID: e.id, Vector: e.vector})
	}
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("linear: encode entries: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode restores an index serialized by GobEncode, replacing the
// receiver's state.
func (l *Linear) GobDecode(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))

	var opts Options
	if err := dec.Decode(&opts); err != nil {
		return fmt.Errorf("linear: decode options: %w", err)
	}

	restored, err := New(func(o *Options) { *o = opts })
	if err != nil {
		return err
	}

	var entries []gobEntry
	if err := dec.Decode(&entries); err != nil {
		return fmt.Errorf("linear: decode entries: %w", err)
	}

	st := &indexState{
		slots:    make([]*entry, 0, len(entries)),
		byEntity: make(map[model.EntityID]int, len(entries)),
		live:     len(entries),
	}
	for _, ge := range entries {
		st.byEntity[ge.ID] = len(st.slots)
		st.slots = append(st.slots, &entry{id: ge.ID, vector: ge.Vector})
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.opts = restored.opts
	l.distFunc = restored.distFunc
	l.state.Store(st)
	return nil
}
