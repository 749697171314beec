// Package config holds the bootloader's compile-time identity: USB
// descriptor fields and the flash memory map. The teacher's runtime
// go:embed configuration mechanism existed to let a fleet of deployed
// devices point at different brokers without reflashing; a bootloader
// has no such deployment-time variance; so this identity is a plain
// set of typed constants instead.
package config

// USB device identity, spec §4.4.
const (
	VendorID       uint16 = 0x41ca
	ProductID      uint16 = 0x2137
	Manufacturer          = "aika"
	Product               = "dfuboot"
	SerialNumber          = "8971842209015648"
)

// AltSetting names the two DFU interface alternate settings exposed,
// one per flash bank a build can target.
type AltSetting int

const (
	AltSettingApp AltSetting = iota
	AltSettingBootFlags
)

// AltSettingNames is indexed by AltSetting.
var AltSettingNames = [...]string{
	AltSettingApp:       "@Application/0x08004000/1*124Kg",
	AltSettingBootFlags: "@BootFlags/0x0800FC00/1*1Ka",
}

// Flash memory map, spec §3-§4.2.
const (
	// FlashBase is the first address of the STM32F1's flash alias.
	FlashBase uint32 = 0x0800_0000

	// BootloaderSize is the size reserved for this bootloader itself;
	// application firmware is never written below FlashBase+BootloaderSize.
	BootloaderSize uint32 = 0x4000

	// AppBaseAddr is the first address DNLOAD writes application
	// firmware to.
	AppBaseAddr uint32 = FlashBase + BootloaderSize

	// Flash128KiB and Flash64KiB describe the two part sizes this
	// bootloader supports. bootflags.Store does not read them: it picks
	// bootflags.PrimaryAddr or bootflags.FallbackAddr from the erase
	// status of the primary page.
	Flash128KiB uint32 = 128 * 1024
	Flash64KiB  uint32 = 64 * 1024
)

// WebUSBLandingPageURL is the device's advertised landing page. It
// holds the same value as dfu.WebUSBLandingPageURL, which
// internal/dfu declares separately rather than importing this one.
const WebUSBLandingPageURL = "https://devanlai.github.io/webdfu/dfu-util"
