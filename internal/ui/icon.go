package ui

// iconBytes is a 16x16 PNG of the tray glyph, a play triangle on a
// slate square. Kept inline so the binary has no asset files to ship.
var iconBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff, 0x61, 0x00, 0x00, 0x00,
	0x37, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x60, 0xa0, 0x06, 0x90,
	0xd3, 0xb4, 0xfe, 0x4f, 0x0e, 0x1e, 0x89, 0x06, 0x7c, 0xf8, 0xf2, 0x83,
	0x3c, 0x03, 0x40, 0x1a, 0x61, 0x98, 0x24, 0x03, 0x90, 0x35, 0x92, 0x64,
	0x00, 0x36, 0x8d, 0xf4, 0x75, 0x01, 0xd5, 0xc2, 0x80, 0x6a, 0xb1, 0x30,
	0x78, 0x12, 0x12, 0x4e, 0x03, 0x28, 0x01, 0x00, 0x78, 0x8b, 0x61, 0x9e,
	0x8e, 0xfa, 0xf9, 0x9e, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44,
	0xae, 0x42, 0x60, 0x82,
}
