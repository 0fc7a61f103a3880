package disk

import (
	"sort"

	"github.com/pkg/errors"
)

type Kind int

const (
	// KindNFS images carry stacked code followed by an embedded nFS region.
	KindNFS Kind = iota
	// KindEFI images are sized to fit the INITRD and populated by external
	// image steps.
	KindEFI
)

func (k Kind) String() string {
	switch k {
	case KindNFS:
		return "nfs"
	case KindEFI:
		return "efi"
	default:
		panic("invalid layout kind")
	}
}

const (
	SignatureLen = 4
	VersionLen   = 2
	EntryLen     = 32
	EntryNameLen = 24
)

// Layout describes one on-disk format revision. Offsets are absolute byte
// offsets into the image.
type Layout struct {
	Name             string
	Kind             Kind
	ImageSize        int64
	SignatureOffset  int64
	PartitionNameLen int64
	HasVersion       bool
	VersionMajor     uint8
	VersionMinor     uint8
	TableOffset      int64
	TableSlots       int64
	FirstDataSector  int64
}

var (
	LayoutFloppyV1 = Layout{
		Name:             "floppy-v1",
		Kind:             KindNFS,
		ImageSize:        FloppySize,
		SignatureOffset:  5 * SectorBytes,
		PartitionNameLen: 16,
		HasVersion:       true,
		VersionMajor:     1,
		VersionMinor:     1,
		TableOffset:      6 * SectorBytes,
		TableSlots:       SectorBytes / EntryLen,
		FirstDataSector:  7,
	}

	LayoutDisk16V1 = Layout{
		Name:             "disk16-v1",
		Kind:             KindNFS,
		ImageSize:        Disk16Size,
		SignatureOffset:  5 * SectorBytes,
		PartitionNameLen: 16,
		HasVersion:       true,
		VersionMajor:     1,
		VersionMinor:     1,
		TableOffset:      6 * SectorBytes,
		TableSlots:       SectorBytes / EntryLen,
		FirstDataSector:  7,
	}

	LayoutEFIV1 = Layout{
		Name:      "efi-v1",
		Kind:      KindEFI,
		ImageSize: DefaultEFISectors * SectorBytes,
	}
)

var layouts = map[string]Layout{
	LayoutFloppyV1.Name: LayoutFloppyV1,
	LayoutDisk16V1.Name: LayoutDisk16V1,
	LayoutEFIV1.Name:    LayoutEFIV1,
}

var (
	ErrUnknownLayout = errors.New("unknown layout")
	ErrInvalidLayout = errors.New("invalid layout")
)

func LookupLayout(name string) (Layout, error) {
	l, ok := layouts[name]
	if !ok {
		return Layout{}, errors.Wrapf(ErrUnknownLayout, "layout %q (known: %v)", name, LayoutNames())
	}
	return l, nil
}

func LayoutNames() []string {
	var names []string
	for name := range layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Overrides replaces individual layout fields. Nil fields keep the
// layout's own setting.
type Overrides struct {
	ImageSize       *int64
	SignatureOffset *int64
	TableOffset     *int64
	TableSlots      *int64
	FirstDataSector *int64
}

func (l Layout) WithOverrides(o Overrides) Layout {
	override(&l.ImageSize, o.ImageSize)
	override(&l.SignatureOffset, o.SignatureOffset)
	override(&l.TableOffset, o.TableOffset)
	override(&l.TableSlots, o.TableSlots)
	override(&l.FirstDataSector, o.FirstDataSector)
	return l
}

func override(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

// SuperblockLen is the number of bytes the signature region occupies.
func (l Layout) SuperblockLen() int64 {
	n := SignatureLen + l.PartitionNameLen
	if l.HasVersion {
		n += VersionLen
	}
	return n
}

func (l Layout) TableLen() int64 {
	return l.TableSlots * EntryLen
}

// MaxNameLen is the longest destination name a table entry can hold. The
// last byte of the name field always stays NUL.
func (l Layout) MaxNameLen() int {
	return EntryNameLen - 1
}

func (l Layout) DataOffset() int64 {
	return SectorOffset(l.FirstDataSector)
}

func (l Layout) Validate() error {
	if l.ImageSize <= 0 {
		return errors.Wrapf(ErrInvalidLayout, "layout %s: image size must be positive", l.Name)
	}
	if l.Kind != KindNFS {
		return nil
	}
	if l.SignatureOffset < 0 || l.TableOffset < 0 || l.TableSlots <= 0 || l.FirstDataSector <= 0 {
		return errors.Wrapf(ErrInvalidLayout, "layout %s: offsets must be positive", l.Name)
	}
	sbEnd := l.SignatureOffset + l.SuperblockLen()
	tEnd := l.TableOffset + l.TableLen()
	if l.SignatureOffset < tEnd && l.TableOffset < sbEnd {
		return errors.Wrapf(ErrInvalidLayout, "layout %s: signature region overlaps file table", l.Name)
	}
	if sbEnd > l.DataOffset() || tEnd > l.DataOffset() {
		return errors.Wrapf(ErrInvalidLayout, "layout %s: metadata extends into data region", l.Name)
	}
	if l.DataOffset() > l.ImageSize {
		return errors.Wrapf(ErrInvalidLayout, "layout %s: data region starts beyond image end", l.Name)
	}
	return nil
}

// CodeLimit is the offset stacked code must end at or before.
func (l Layout) CodeLimit() int64 {
	if l.Kind != KindNFS {
		return l.ImageSize
	}
	if l.TableOffset < l.SignatureOffset {
		return l.TableOffset
	}
	return l.SignatureOffset
}

// SizeFor returns the image size for a layout whose payload needs at
// least required bytes. Fixed-size layouts ignore required.
func (l Layout) SizeFor(required int64) int64 {
	if l.Kind != KindEFI {
		return l.ImageSize
	}
	minSectors := required/SectorBytes + 1
	if SectorOffset(minSectors) > l.ImageSize {
		return SectorOffset(minSectors)
	}
	return l.ImageSize
}
