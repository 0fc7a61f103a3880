package nfs

import (
	"encoding/binary"
	"io"

	"nbuild/disk"

	"github.com/pkg/errors"
)

type Superblock struct {
	PartitionName string
	VersionMajor  uint8
	VersionMinor  uint8
}

func encodeName(name string, fieldLen int) []byte {
	field := make([]byte, fieldLen)
	copy(field, name)
	return field
}

func decodeName(field []byte) string {
	for i, b := range field {
		if b == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}

func WriteSuperblock(buf *disk.Buffer, layout disk.Layout, partitionName string) error {
	if err := checkLayout(layout); err != nil {
		return err
	}
	if int64(len(partitionName)) > layout.PartitionNameLen-1 {
		return errors.Wrapf(ErrPartitionNameTooLong, "%q is longer than %d bytes", partitionName, layout.PartitionNameLen-1)
	}
	if err := checkRegion(buf, layout.SignatureOffset, layout.SuperblockLen()); err != nil {
		return errors.Wrap(err, "error placing signature")
	}

	region := make([]byte, layout.SuperblockLen())
	binary.LittleEndian.PutUint32(region, Magic)
	copy(region[disk.SignatureLen:], encodeName(partitionName, int(layout.PartitionNameLen)))
	if layout.HasVersion {
		v := disk.SignatureLen + layout.PartitionNameLen
		region[v] = layout.VersionMajor
		region[v+1] = layout.VersionMinor
	}
	_, err := buf.WriteAt(region, layout.SignatureOffset)
	return err
}

func ReadSuperblock(r io.ReaderAt, layout disk.Layout) (Superblock, error) {
	if err := checkLayout(layout); err != nil {
		return Superblock{}, err
	}
	region := make([]byte, layout.SuperblockLen())
	if _, err := r.ReadAt(region, layout.SignatureOffset); err != nil {
		return Superblock{}, errors.Wrap(err, "error reading signature region")
	}
	if binary.LittleEndian.Uint32(region) != Magic {
		return Superblock{}, ErrBadSignature
	}
	sb := Superblock{
		PartitionName: decodeName(region[disk.SignatureLen : disk.SignatureLen+layout.PartitionNameLen]),
	}
	if layout.HasVersion {
		v := disk.SignatureLen + layout.PartitionNameLen
		sb.VersionMajor = region[v]
		sb.VersionMinor = region[v+1]
	}
	return sb, nil
}
