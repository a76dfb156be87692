package vision

import "gocv.io/x/gocv"

// Buffers owns the per-frame scratch Mats. They are keyed by frame shape and
// reallocated only when the shape changes, so the steady-state loop does no
// Mat allocation.
type Buffers struct {
	Gray gocv.Mat // full-frame grayscale
	HSV  gocv.Mat // top region converted to HSV
	Mask gocv.Mat // zone detection mask

	width      int
	height     int
	zoneHeight int
}

// NewBuffers returns an empty buffer set. Mats are created lazily on the
// first Ensure call.
func NewBuffers() *Buffers {
	return &Buffers{
		Gray: gocv.NewMat(),
		HSV:  gocv.NewMat(),
		Mask: gocv.NewMat(),
	}
}

// Ensure resizes the scratch Mats for a frame of the given shape.
// zoneHeight is the height of the zone-detection region (top portion of the
// frame).
func (b *Buffers) Ensure(width, height, zoneHeight int) {
	if b.width == width && b.height == height && b.zoneHeight == zoneHeight && !b.Gray.Empty() {
		return
	}

	b.Gray.Close()
	b.HSV.Close()
	b.Mask.Close()

	b.Gray = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8U)
	b.HSV = gocv.NewMatWithSize(zoneHeight, width, gocv.MatTypeCV8UC3)
	b.Mask = gocv.NewMatWithSize(zoneHeight, width, gocv.MatTypeCV8U)

	b.width = width
	b.height = height
	b.zoneHeight = zoneHeight
}

// Close releases all scratch Mats.
func (b *Buffers) Close() {
	b.Gray.Close()
	b.HSV.Close()
	b.Mask.Close()
}
