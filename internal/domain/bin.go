package domain

import "fmt"

// BinType identifies the pipeline stage a bin serves.
type BinType string

const (
	BinTypeStorage   BinType = "STORAGE"
	BinTypeWash      BinType = "WASH"
	BinTypeQC        BinType = "QC"
	BinTypePacking   BinType = "PACKING"
	BinTypeFinishing BinType = "FINISHING"
)

// IsValid reports whether the bin type is known.
func (t BinType) IsValid() bool {
	switch t {
	case BinTypeStorage, BinTypeWash, BinTypeQC, BinTypePacking, BinTypeFinishing:
		return true
	}
	return false
}

// Bin is a physical container with bounded capacity.
// 0 <= CurrentCount <= Capacity always holds.
type Bin struct {
	ID           string  `bson:"_id" json:"id"`
	Code         string  `bson:"code" json:"code"`
	Type         BinType `bson:"type" json:"type"`
	AffinitySKU  string  `bson:"affinitySku,omitempty" json:"affinitySku,omitempty"`
	WashGroup    string  `bson:"washGroup,omitempty" json:"washGroup,omitempty"`
	Capacity     int     `bson:"capacity" json:"capacity"`
	CurrentCount int     `bson:"currentCount" json:"currentCount"`
	Active       bool    `bson:"active" json:"active"`
	Location     string  `bson:"location,omitempty" json:"location,omitempty"`
}

// FreeSpace returns the remaining capacity.
func (b *Bin) FreeSpace() int {
	return b.Capacity - b.CurrentCount
}

// HasRoomFor reports whether n more items fit.
func (b *Bin) HasRoomFor(n int) bool {
	return n > 0 && b.CurrentCount+n <= b.Capacity
}

// CheckAssignable verifies the bin can take n items of the given type.
func (b *Bin) CheckAssignable(binType BinType, n int) error {
	if !b.Active {
		return fmt.Errorf("%w: %s", ErrBinInactive, b.Code)
	}
	if binType != "" && b.Type != binType {
		return fmt.Errorf("%w: bin %s is %s, expected %s", ErrBinTypeMismatch, b.Code, b.Type, binType)
	}
	if !b.HasRoomFor(n) {
		return fmt.Errorf("%w: bin %s holds %d/%d", ErrBinFull, b.Code, b.CurrentCount, b.Capacity)
	}
	return nil
}

// Clone returns a copy.
func (b *Bin) Clone() *Bin {
	c := *b
	return &c
}
