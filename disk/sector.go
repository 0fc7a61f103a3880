package disk

import "io"

type Sector [SectorBytes]byte

var ZeroSector Sector

// SectorsFor returns how many whole sectors are needed to hold n bytes.
// A zero-length payload needs zero sectors.
func SectorsFor(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return (n + SectorBytes - 1) / SectorBytes
}

func SectorOffset(id int64) int64 {
	return id * SectorBytes
}

func ReadSector(r io.ReaderAt, id int64) (Sector, error) {
	var sector Sector
	err := sector.Decode(io.NewSectionReader(r, SectorOffset(id), SectorBytes))
	return sector, err
}

// IsZero reports whether every byte of the sector is zero.
func (s Sector) IsZero() bool {
	return s == ZeroSector
}

func (s Sector) Encode(w io.Writer) error {
	_, err := w.Write(s[:])
	return err
}

func (s *Sector) Decode(r io.Reader) error {
	var newSector Sector
	if _, err := io.ReadFull(r, newSector[:]); err != nil {
		return err
	}
	*s = newSector
	return nil
}
