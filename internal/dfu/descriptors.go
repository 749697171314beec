package dfu

// Interface class/subclass/protocol for a DFU-mode-only interface, USB
// DFU 1.1 §4.2.3.
const (
	InterfaceClass    = 0xFE
	InterfaceSubClass = 0x01
	InterfaceProtocol = 0x02
)

// bmAttributes bits, USB DFU 1.1 §4.1.3 Table 4.2.
const (
	attrCanDnload             = 0x01
	attrCanUpload             = 0x02
	attrManifestationTolerant = 0x04
)

// UploadCapable and DownloadCapable are fixed by this bootloader's
// policy: it is download-only and never implements UPLOAD (spec §1
// Non-goals), and is always manifestation tolerant since ProcessFlash
// never requires a bus reset to leave the manifest phase.
const (
	UploadCapable   = false
	DownloadCapable = true
)

// FunctionalDescriptor builds the DFU functional descriptor, USB DFU
// 1.1 §4.1.3, with bmAttributes derived from this bootloader's fixed
// upload/download capability rather than a hardcoded byte.
func FunctionalDescriptor() [9]byte {
	attr := byte(attrManifestationTolerant)
	if UploadCapable {
		attr |= attrCanUpload
	}
	if DownloadCapable {
		attr |= attrCanDnload
	}
	return [9]byte{
		9,          // bLength
		0x21,       // bDescriptorType: DFU_FUNCTIONAL
		attr,       // bmAttributes
		0xff, 0x00, // wDetachTimeout = 255 ms
		0x00, 0x01, // wTransferSize = 0x0100 (256 bytes)
		0x10, 0x01, // bcdDFUVersion = 0x0110
	}
}

// msOS20DescriptorSetUUID is the vendor-chosen UUID BOS capability
// consumers (e.g. WinUSB) match against to pick up this device's
// Microsoft OS 2.0 descriptor set, spec §4.4.
var msOS20DescriptorSetUUID = [16]byte{
	0xDF, 0x60, 0xDD, 0xD8, 0x89, 0x45, 0xC7, 0x4C,
	0x9C, 0xD2, 0x65, 0x9D, 0x9E, 0x64, 0x8A, 0x9F,
}

// VendorCodeMSOS20 is the bMS_VendorCode a host uses in the
// GET_MS_DESCRIPTOR vendor request to retrieve the descriptor set this
// capability descriptor announces.
const VendorCodeMSOS20 = 0x21

// PlatformCapabilityMSOS20 builds the BOS platform capability
// descriptor that advertises Microsoft OS 2.0 descriptor support, spec
// §4.4 / MS-OS-2.0 descriptor spec §5.
func PlatformCapabilityMSOS20() []byte {
	b := make([]byte, 0, 28)
	b = append(b, 28, 0x10, 0x05) // bLength, bDescriptorType=DEVICE_CAPABILITY, bDevCapabilityType=PLATFORM
	b = append(b, 0x00)           // bReserved
	b = append(b, msOS20DescriptorSetUUID[:]...)
	b = append(b, 0x00, 0x00, 0x03, 0x06) // dwWindowsVersion = 0x06030000
	b = append(b, 0xB2, 0x00)             // wMSOSDescriptorSetTotalLength = 0x00B2
	b = append(b, VendorCodeMSOS20)       // bMS_VendorCode
	b = append(b, 0x00)                   // bAltEnumCode
	return b
}

// WebUSBLandingPageURL is the URL the WebUSB platform capability's
// landing page descriptor points at, so dfu-util-compatible browser
// tools can discover this device, spec §4.4.
const WebUSBLandingPageURL = "https://devanlai.github.io/webdfu/dfu-util"
