package metadata

// SchemaVersion identifies the response layout below. Bump it whenever a
// field is renamed or moved between sections.
const SchemaVersion = 1

// NotAvailable is the placeholder for string fields the image does not carry.
const NotAvailable = "N/A"

// Report is the fixed response document of POST /api/metadata.
type Report struct {
	SchemaVersion int        `json:"SchemaVersion"`
	File          File       `json:"File"`
	EXIF          EXIF       `json:"EXIF"`
	IPTC          IPTC       `json:"IPTC"`
	XMP           XMP        `json:"XMP"`
	GPS           GPS        `json:"GPS"`
	Composite     Composite  `json:"Composite"`
	ICCProfile    ICCProfile `json:"ICC_Profile"`
}

type File struct {
	FileName          string `json:"FileName"`
	FileSize          int64  `json:"FileSize"`
	FileType          string `json:"FileType"`
	FileTypeExtension string `json:"FileTypeExtension"`
	MIMEType          string `json:"MIMEType"`
	ImageWidth        int    `json:"ImageWidth"`
	ImageHeight       int    `json:"ImageHeight"`
	SHA256            string `json:"SHA256"`
	PerceptualHash    string `json:"PerceptualHash"`
}

type EXIF struct {
	Make                    string  `json:"Make"`
	Model                   string  `json:"Model"`
	LensModel               string  `json:"LensModel"`
	Software                string  `json:"Software"`
	Artist                  string  `json:"Artist"`
	Copyright               string  `json:"Copyright"`
	ImageDescription        string  `json:"ImageDescription"`
	Orientation             string  `json:"Orientation"`
	DateTimeOriginal        string  `json:"DateTimeOriginal"`
	CreateDate              string  `json:"CreateDate"`
	ModifyDate              string  `json:"ModifyDate"`
	ExposureTime            string  `json:"ExposureTime"`
	FNumber                 float64 `json:"FNumber"`
	ISO                     int     `json:"ISO"`
	FocalLength             string  `json:"FocalLength"`
	FocalLengthIn35mmFormat string  `json:"FocalLengthIn35mmFormat"`
	ExposureProgram         string  `json:"ExposureProgram"`
	ExposureMode            string  `json:"ExposureMode"`
	MeteringMode            string  `json:"MeteringMode"`
	Flash                   string  `json:"Flash"`
	WhiteBalance            string  `json:"WhiteBalance"`
	SceneCaptureType        string  `json:"SceneCaptureType"`
	XResolution             float64 `json:"XResolution"`
	YResolution             float64 `json:"YResolution"`
	ResolutionUnit          string  `json:"ResolutionUnit"`

	// exposureSeconds feeds the composite light value; not serialized.
	exposureSeconds float64
}

type IPTC struct {
	ObjectName      string   `json:"ObjectName"`
	Caption         string   `json:"Caption"`
	Keywords        []string `json:"Keywords"`
	Byline          string   `json:"Byline"`
	BylineTitle     string   `json:"BylineTitle"`
	Credit          string   `json:"Credit"`
	Source          string   `json:"Source"`
	CopyrightNotice string   `json:"CopyrightNotice"`
	City            string   `json:"City"`
	ProvinceState   string   `json:"ProvinceState"`
	Country         string   `json:"Country"`
	DateCreated     string   `json:"DateCreated"`
}

type XMP struct {
	Title        string   `json:"Title"`
	Description  string   `json:"Description"`
	Creator      string   `json:"Creator"`
	Rights       string   `json:"Rights"`
	Subject      []string `json:"Subject"`
	Rating       int      `json:"Rating"`
	Label        string   `json:"Label"`
	CreatorTool  string   `json:"CreatorTool"`
	WebStatement string   `json:"WebStatement"`
	UsageTerms   string   `json:"UsageTerms"`
	License      string   `json:"License"`
	Marked       bool     `json:"Marked"`
}

type GPS struct {
	Latitude     float64 `json:"Latitude"`
	Longitude    float64 `json:"Longitude"`
	Altitude     float64 `json:"Altitude"`
	LatitudeRef  string  `json:"LatitudeRef"`
	LongitudeRef string  `json:"LongitudeRef"`

	present bool
}

type Composite struct {
	ImageSize    string  `json:"ImageSize"`
	Megapixels   float64 `json:"Megapixels"`
	Aperture     float64 `json:"Aperture"`
	ShutterSpeed string  `json:"ShutterSpeed"`
	LightValue   float64 `json:"LightValue"`
	GPSPosition  string  `json:"GPSPosition"`
}

type ICCProfile struct {
	ProfileSize            int    `json:"ProfileSize"`
	ProfileCMMType         string `json:"ProfileCMMType"`
	ProfileVersion         string `json:"ProfileVersion"`
	ProfileClass           string `json:"ProfileClass"`
	ColorSpaceData         string `json:"ColorSpaceData"`
	ProfileConnectionSpace string `json:"ProfileConnectionSpace"`
	ProfileDateTime        string `json:"ProfileDateTime"`
	PrimaryPlatform        string `json:"PrimaryPlatform"`
	DeviceManufacturer     string `json:"DeviceManufacturer"`
	RenderingIntent        string `json:"RenderingIntent"`
	ProfileDescription     string `json:"ProfileDescription"`
}

// NewReport returns a report where every field holds its placeholder.
func NewReport() *Report {
	return &Report{
		SchemaVersion: SchemaVersion,
		File: File{
			FileName:          NotAvailable,
			FileType:          NotAvailable,
			FileTypeExtension: NotAvailable,
			MIMEType:          NotAvailable,
			SHA256:            NotAvailable,
			PerceptualHash:    NotAvailable,
		},
		EXIF: EXIF{
			Make:                    NotAvailable,
			Model:                   NotAvailable,
			LensModel:               NotAvailable,
			Software:                NotAvailable,
			Artist:                  NotAvailable,
			Copyright:               NotAvailable,
			ImageDescription:        NotAvailable,
			Orientation:             NotAvailable,
			DateTimeOriginal:        NotAvailable,
			CreateDate:              NotAvailable,
			ModifyDate:              NotAvailable,
			ExposureTime:            NotAvailable,
			FocalLength:             NotAvailable,
			FocalLengthIn35mmFormat: NotAvailable,
			ExposureProgram:         NotAvailable,
			ExposureMode:            NotAvailable,
			MeteringMode:            NotAvailable,
			Flash:                   NotAvailable,
			WhiteBalance:            NotAvailable,
			SceneCaptureType:        NotAvailable,
			ResolutionUnit:          NotAvailable,
		},
		IPTC: IPTC{
			ObjectName:      NotAvailable,
			Caption:         NotAvailable,
			Keywords:        []string{},
			Byline:          NotAvailable,
			BylineTitle:     NotAvailable,
			Credit:          NotAvailable,
			Source:          NotAvailable,
			CopyrightNotice: NotAvailable,
			City:            NotAvailable,
			ProvinceState:   NotAvailable,
			Country:         NotAvailable,
			DateCreated:     NotAvailable,
		},
		XMP: XMP{
			Title:        NotAvailable,
			Description:  NotAvailable,
			Creator:      NotAvailable,
			Rights:       NotAvailable,
			Subject:      []string{},
			Label:        NotAvailable,
			CreatorTool:  NotAvailable,
			WebStatement: NotAvailable,
			UsageTerms:   NotAvailable,
			License:      NotAvailable,
		},
		GPS: GPS{
			LatitudeRef:  NotAvailable,
			LongitudeRef: NotAvailable,
		},
		Composite: Composite{
			ImageSize:    NotAvailable,
			ShutterSpeed: NotAvailable,
			GPSPosition:  NotAvailable,
		},
		ICCProfile: ICCProfile{
			ProfileCMMType:         NotAvailable,
			ProfileVersion:         NotAvailable,
			ProfileClass:           NotAvailable,
			ColorSpaceData:         NotAvailable,
			ProfileConnectionSpace: NotAvailable,
			ProfileDateTime:        NotAvailable,
			PrimaryPlatform:        NotAvailable,
			DeviceManufacturer:     NotAvailable,
			RenderingIntent:        NotAvailable,
			ProfileDescription:     NotAvailable,
		},
	}
}

// setString assigns v to dst unless v is blank.
func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
