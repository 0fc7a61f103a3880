package disk

const (
	SectorBytes = 512

	FloppySize = 1474560
	Disk16Size = 16 * 1024 * 1024

	DefaultEFISectors = 4 * 1024 * 2
)
