package views

// Page is everything the studio shell renders. Handlers build it fresh on
// every request so nothing is cached between renders.
type Page struct {
	Title    string
	CSRF     string
	Tab      string // active tab id
	Tabs     []TabLink
	Banner   *Banner
	Timezone string // fallback zone for the schedule form

	Editor EditorView
	Cube   CubeView
	Posts  []PostView
	Events []EventView
	Tasks  []TaskView
}

// Banner is the one-shot feedback message shown above the panels.
type Banner struct {
	Kind    string // "success", "error" or "info"
	Message string
}

type TabLink struct {
	ID     string
	Label  string
	Active bool
}

// EditorView carries the editor state into the editor panel.
type EditorView struct {
	HasImage bool
	Source   string // data URL of the uploaded image
	Width    int
	Height   int

	OffsetX  float64
	OffsetY  float64
	Zoom     float64
	Rotation float64

	FilterCSS string
	Filters   []Option
	Crop      *Crop // last committed crop, nil before the first commit

	CanRender  bool
	PreviewURL string
}

type Crop struct {
	X, Y, Width, Height int
}

// Option is one entry of a <select>.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

type CubeView struct {
	Mounted bool
	Ready   bool
	FPS     int
}

type PostView struct {
	ID          string
	Title       string
	Description string
	ScheduledAt string
	CreatedAt   string
}

type EventView struct {
	Type     string
	Relative string
	Meta     string
}

type TaskView struct {
	Key     string
	Label   string
	Status  string
	Elapsed string
	Running bool
}
