package ui

// iconBytes is a 16x16 PNG: a blue frame with a diagonal cut.
var iconBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff, 0x61, 0x00, 0x00, 0x00,
	0x42, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda, 0x63, 0x60, 0x18, 0x3e, 0x40,
	0x25, 0xf9, 0xf5, 0x7f, 0x18, 0x00, 0xb1, 0x71, 0x61, 0x18, 0xc0, 0x6a,
	0x00, 0x21, 0x43, 0x90, 0xe5, 0x70, 0x1a, 0x80, 0xcb, 0x10, 0x74, 0x31,
	0xbc, 0x06, 0xa0, 0x6b, 0xc0, 0x66, 0x20, 0x41, 0x03, 0x90, 0x35, 0x62,
	0xf3, 0x12, 0xed, 0x0d, 0xa0, 0xc8, 0x0b, 0x14, 0x05, 0x22, 0x45, 0xd1,
	0x48, 0x51, 0x42, 0x1a, 0xba, 0x00, 0x00, 0x6a, 0x62, 0x5f, 0xaa, 0x25,
	0x30, 0x69, 0xa0, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}
