package xex

import "fmt"

// parseSecurityInfo reads the two security-info fields anything
// downstream actually consumes: header_size (to detect truncation)
// and image_size (the decompressed image's expected length). The full
// RSA/AES/page-descriptor structure is never read — retail decryption
// is a spec Non-goal, so there is nothing in xenonjit that would
// consume a signature or an AES key.
func (m *Module) parseSecurityInfo(data []byte) error {
	off := int(m.Header.SecurityOffset)
	if off == 0 {
		return nil // absent; image size falls back to the embedded PE header
	}

	c := newCursor(data)
	c.seek(off)
	headerSize, ok := c.u32()
	if !ok {
		return nil // truncated before even header_size — treat as absent
	}
	if headerSize < 8 || off+int(headerSize) > len(data) {
		return fmt.Errorf("%w: truncated security info", ErrLoadFormat)
	}

	imageSize, ok := c.u32()
	if !ok {
		return fmt.Errorf("%w: truncated security info", ErrLoadFormat)
	}
	m.ImageSize = imageSize
	return nil
}
