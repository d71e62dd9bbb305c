// internal/input/dnd/transfer.go
package dnd

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/inputcore/api/schemas"
)

// Policy is the access a listener has to a DataTransfer.
type Policy uint8

const (
	// Writable during dragstart.
	Writable Policy = iota
	// Protected exposes types only, while the drag is in flight.
	Protected
	// Readable exposes data, during drop.
	Readable
	// Numb exposes nothing.
	Numb
)

func (p Policy) String() string {
	switch p {
	case Writable:
		return "writable"
	case Protected:
		return "protected"
	case Readable:
		return "readable"
	case Numb:
		return "numb"
	}
	return "unknown"
}

// DataTransfer is the payload of a drag. Items are keyed by lower-case MIME
// type.
type DataTransfer struct {
	policy        Policy
	items         map[string]string
	effectAllowed schemas.DragOperation
	dropEffect    schemas.DragOperation
}

// NewDataTransfer returns an empty, writable payload allowing every operation.
func NewDataTransfer() *DataTransfer {
	return &DataTransfer{
		policy:        Writable,
		items:         make(map[string]string),
		effectAllowed: schemas.DragOperationAll,
	}
}

// NewExternal wraps data supplied by the platform. It starts protected.
func NewExternal(items map[string]string, allowed schemas.DragOperation) *DataTransfer {
	dt := NewDataTransfer()
	for k, v := range items {
		dt.items[strings.ToLower(k)] = v
	}
	dt.effectAllowed = allowed
	dt.policy = Protected
	return dt
}

// Policy is the current access policy.
func (d *DataTransfer) Policy() Policy { return d.policy }

// SetPolicy changes the access policy. Once numb a payload stays numb.
func (d *DataTransfer) SetPolicy(p Policy) {
	if d.policy == Numb {
		return
	}
	d.policy = p
}

func (d *DataTransfer) Types() []string {
	if d.policy == Numb {
		return nil
	}
	out := make([]string, 0, len(d.items))
	for k := range d.items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (d *DataTransfer) GetData(mime string) (string, bool) {
	if d.policy != Writable && d.policy != Readable {
		return "", false
	}
	v, ok := d.items[strings.ToLower(mime)]
	return v, ok
}

func (d *DataTransfer) SetData(mime, value string) bool {
	if d.policy != Writable {
		return false
	}
	d.items[strings.ToLower(mime)] = value
	return true
}

func (d *DataTransfer) EffectAllowed() schemas.DragOperation { return d.effectAllowed }

// SetEffectAllowed is only honoured during dragstart.
func (d *DataTransfer) SetEffectAllowed(op schemas.DragOperation) bool {
	if d.policy != Writable {
		return false
	}
	d.effectAllowed = op
	return true
}

func (d *DataTransfer) DropEffect() schemas.DragOperation { return d.dropEffect }

func (d *DataTransfer) SetDropEffect(op schemas.DragOperation) {
	if d.policy == Numb {
		return
	}
	d.dropEffect = op
}

// HasType reports whether the payload carries mime. It works under every
// policy but Numb.
func (d *DataTransfer) HasType(mime string) bool {
	if d.policy == Numb {
		return false
	}
	_, ok := d.items[strings.ToLower(mime)]
	return ok
}

// defaultEffect picks the drop effect for an accepting target that did not
// choose one.
func defaultEffect(allowed schemas.DragOperation) schemas.DragOperation {
	for _, op := range []schemas.DragOperation{schemas.DragOperationCopy, schemas.DragOperationMove, schemas.DragOperationLink} {
		if allowed&op != 0 {
			return op
		}
	}
	return schemas.DragOperationNone
}
