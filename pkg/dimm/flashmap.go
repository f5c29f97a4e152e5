package dimm

// MCU flash layout. The STM32 maps its internal flash at FlashBase;
// the read-only loader occupies the first half of the firmware span and
// the rewritable application image the second half. In-band updates
// rewrite only the RW half; DFU updates rewrite the whole span.
const (
	FlashBase uint32 = 0x08000000

	FlashOffRO  uint32 = 0x0
	FlashSizeRO uint32 = 0x10000
	FlashOffRW  uint32 = 0x10000
	FlashSizeRW uint32 = 0x10000
	FlashSizeFW uint32 = FlashSizeRO + FlashSizeRW
)
