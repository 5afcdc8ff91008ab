package dicom

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
)

// longElement encodes one explicit VR little endian element in the long
// form (2 reserved bytes, 4-byte length).
func longElement(group, elem uint16, vr string, value []byte) []byte {
	buf := make([]byte, 0, 12+len(value))
	buf = binary.LittleEndian.AppendUint16(buf, group)
	buf = binary.LittleEndian.AppendUint16(buf, elem)
	buf = append(buf, vr...)
	buf = append(buf, 0, 0)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value)))
	return append(buf, value...)
}

func uint16Value(v int) []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(v))
}

// writePixelFile writes a DICOM file with one native 8-bit grayscale frame.
func writePixelFile(t *testing.T, dir, name string, rows, cols int, samples []byte) string {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(make([]byte, 128))
	buf.WriteString("DICM")

	transferSyntax := explicitElement(0x0002, 0x0010, "UI", evenPad("1.2.840.10008.1.2.1", "\x00"))
	groupLength := binary.LittleEndian.AppendUint32(nil, uint32(len(transferSyntax)))
	buf.Write(explicitElement(0x0002, 0x0000, "UL", groupLength))
	buf.Write(transferSyntax)

	buf.Write(explicitElement(0x0028, 0x0002, "US", uint16Value(1)))
	buf.Write(explicitElement(0x0028, 0x0008, "IS", evenPad("1", " ")))
	buf.Write(explicitElement(0x0028, 0x0010, "US", uint16Value(rows)))
	buf.Write(explicitElement(0x0028, 0x0011, "US", uint16Value(cols)))
	buf.Write(explicitElement(0x0028, 0x0100, "US", uint16Value(8)))
	buf.Write(explicitElement(0x0028, 0x0101, "US", uint16Value(8)))
	buf.Write(explicitElement(0x0028, 0x0102, "US", uint16Value(7)))
	buf.Write(explicitElement(0x0028, 0x0103, "US", uint16Value(0)))
	buf.Write(longElement(0x7FE0, 0x0010, "OB", samples))

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

func TestDeriveRendersNormalizedThumbnail(t *testing.T) {
	path := writePixelFile(t, t.TempDir(), "slice.dcm", 2, 2, []byte{0, 50, 100, 200})

	data, err := NewThumbnailer(2).Derive(path)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("bounds = %v, want 2x2", img.Bounds())
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("expected grayscale image, got %T", img)
	}
	if got := gray.GrayAt(0, 0).Y; got != 0 {
		t.Errorf("min pixel = %d, want 0", got)
	}
	if got := gray.GrayAt(1, 1).Y; got != 255 {
		t.Errorf("max pixel = %d, want 255", got)
	}
}

func TestDeriveUniformFrameFailsCleanly(t *testing.T) {
	path := writePixelFile(t, t.TempDir(), "flat.dcm", 2, 2, []byte{42, 42, 42, 42})

	_, err := NewThumbnailer(2).Derive(path)
	if err == nil {
		t.Fatal("expected error for uniform frame")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("error kind = %v, want invalid input", err)
	}
}

func TestNormalizeFrameRescalesToFullRange(t *testing.T) {
	data := [][]int{{0}, {50}, {100}, {100}}

	gray, err := normalizeFrame(data, 2, 2)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if gray.Pix[0] != 0 {
		t.Errorf("min sample = %d, want 0", gray.Pix[0])
	}
	if gray.Pix[1] != 127 {
		t.Errorf("mid sample = %d, want 127", gray.Pix[1])
	}
	if gray.Pix[2] != 255 || gray.Pix[3] != 255 {
		t.Errorf("max samples = %d,%d, want 255,255", gray.Pix[2], gray.Pix[3])
	}
}

func TestNormalizeFrameNegativeSamples(t *testing.T) {
	data := [][]int{{-100}, {-100}, {-100}, {100}}

	gray, err := normalizeFrame(data, 2, 2)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if gray.Pix[0] != 0 {
		t.Errorf("min sample = %d, want 0", gray.Pix[0])
	}
	if gray.Pix[3] != 255 {
		t.Errorf("max sample = %d, want 255", gray.Pix[3])
	}
}

func TestNormalizeFrameIgnoresEmptyPixels(t *testing.T) {
	data := [][]int{{}, {0}, {100}, {100}}

	gray, err := normalizeFrame(data, 2, 2)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if gray.Pix[0] != 0 {
		t.Errorf("empty pixel = %d, want 0", gray.Pix[0])
	}
	if gray.Pix[1] != 0 {
		t.Errorf("min sample = %d, want 0", gray.Pix[1])
	}
	if gray.Pix[2] != 255 || gray.Pix[3] != 255 {
		t.Errorf("max samples = %d,%d, want 255,255", gray.Pix[2], gray.Pix[3])
	}
}

func TestNormalizeFrameAllEmptyPixels(t *testing.T) {
	data := [][]int{{}, {}, {}, {}}

	_, err := normalizeFrame(data, 2, 2)
	if err == nil {
		t.Fatal("expected error for frame without samples")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("error kind = %v, want invalid input", err)
	}
}

func TestNormalizeFrameUniformIsInvalidInput(t *testing.T) {
	data := [][]int{{42}, {42}, {42}, {42}}

	_, err := normalizeFrame(data, 2, 2)
	if err == nil {
		t.Fatal("expected error for uniform frame")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("error kind = %v, want invalid input", err)
	}
}

func TestNewThumbnailerDefaultSize(t *testing.T) {
	if got := NewThumbnailer(0).size; got != 256 {
		t.Errorf("default size = %d, want 256", got)
	}
	if got := NewThumbnailer(64).size; got != 64 {
		t.Errorf("size = %d, want 64", got)
	}
}

func TestDeriveUnparsableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.dcm")
	if err := os.WriteFile(path, []byte("not a dicom file"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := NewThumbnailer(64).Derive(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDeriveFileWithoutPixelData(t *testing.T) {
	dir := t.TempDir()
	file := writeHeaderFile(t, dir, "meta-only.dcm", "1.2.3.10", 10)

	_, err := NewThumbnailer(64).Derive(file.TempPath)
	if err == nil {
		t.Fatal("expected error for file without pixel data")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("error kind = %v, want invalid input", err)
	}
}
