package pv

// Scan parameter variables, written by the operator or a preset and
// read once when a scan begins.
const (
	RotationStart     = "RotationStart"
	RotationStop      = "RotationStop"
	RotationStep      = "RotationStep"
	NumDarkFields     = "NumDarkFields"
	DarkFieldMode     = "DarkFieldMode"
	NumFlatFields     = "NumFlatFields"
	FlatFieldMode     = "FlatFieldMode"
	PostScanEnable    = "PostScanEnable"
	PostScanStep      = "PostScanStep"
	NumPostScan       = "NumPostScan"
	StabilizationTime = "StabilizationTime"
	InterlacedScan    = "InterlacedScan"
	InterlacedFile    = "InterlacedFileName"
)

// Rotation stage.
const (
	Rotation = "Rotation"
)

// Area detector camera.
const (
	CamManufacturer     = "CamManufacturer"
	CamModel            = "CamModel"
	CamExposureTime     = "CamExposureTime"
	CamADCSpeed         = "CamADCSpeed"
	CamSizeX            = "CamSizeX"
	CamSizeY            = "CamSizeY"
	CamImageMode        = "CamImageMode"
	CamTriggerMode      = "CamTriggerMode"
	CamNumImages        = "CamNumImages"
	CamNumImagesCounter = "CamNumImagesCounter"
	CamAcquire          = "CamAcquire"
	CamAcquireBusy      = "CamAcquireBusy"
	CamTriggerSoftware  = "CamTriggerSoftware"
	FrameType           = "FrameType"
)

// File plugin.
const (
	FPNumCapture   = "FPNumCapture"
	FPNumCaptured  = "FPNumCaptured"
	FPCapture      = "FPCapture"
	FPFullFileName = "FPFullFileName"
	FPFileExists   = "FPFileExists"
)

// Scan status records, written by the engine and read by operator
// screens.
const (
	ScanStatus      = "ScanStatus"
	ScanRunning     = "ScanRunning"
	StartScan       = "StartScan"
	ImagesCollected = "ImagesCollected"
	ImagesSaved     = "ImagesSaved"
	ElapsedTime     = "ElapsedTime"
	RemainingTime   = "RemainingTime"
)
