package config

// Path defaults.
const (
	DefaultInputDir  = "Input"
	DefaultOutputDir = "Output"
	DefaultTempDir   = ""
	DefaultToolsDir  = ""
)

// Resource defaults.
const (
	DefaultMinAvailableMemory = "1GiB"
	DefaultMinFreeDisk        = "2GiB"
	DefaultPressurePercent    = 85.0
	DefaultRetainedTiles      = 3
)

// Tiling defaults.
const (
	DefaultMinChunk  = 256
	DefaultMaxChunk  = 2048
	DefaultChunkStep = 128
	DefaultFilter    = "lanczos"
)

// Tool defaults.
const (
	DefaultAssembleTool    = "texassemble"
	DefaultTranscodeTool   = "texconv"
	DefaultAssembleFormat  = "R8G8B8A8_UNORM"
	DefaultTranscodeFormat = "BC3_UNORM"
	DefaultOutputFormat    = "DDS"
	DefaultOutputName      = "output.dds"
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

const maxPressurePercent = 100
