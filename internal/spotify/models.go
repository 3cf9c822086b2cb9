package spotify

// Cache keys used with the file store.
const (
	TokenKey    = "spotify_token_storage"
	PlaybackKey = "currently_playing"
)

// AccessToken is the only persisted credential.
type AccessToken struct {
	Token string `json:"access_token" validate:"required"`
}

// TrackItem is the normalized description of the playing track. Missing
// upstream strings become "", never null.
type TrackItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Artist      string `json:"artist"`
	ImageURL    string `json:"image_url"`
	IsPlaying   bool   `json:"is_playing"`
	Explicit    bool   `json:"explicit"`
	DurationMs  int    `json:"duration_ms"`
	ProgressMs  int    `json:"progress_ms"`
}

// TrackSnapshot is the last known playback state. Track is set if and only
// if IsActive is true.
type TrackSnapshot struct {
	IsActive bool       `json:"is_active"`
	Track    *TrackItem `json:"track" validate:"required_if=IsActive true"`
}

// InactiveSnapshot is the documented default for the playback cache.
func InactiveSnapshot() TrackSnapshot {
	return TrackSnapshot{IsActive: false}
}

// currentlyPlaying mirrors the fields we use from the currently-playing payload.
// Item is a pointer because the API sends null when nothing is playing.
type currentlyPlaying struct {
	IsPlaying  bool         `json:"is_playing"`
	ProgressMs int          `json:"progress_ms"`
	Item       *trackObject `json:"item"`
}

type trackObject struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Explicit   bool   `json:"explicit"`
	DurationMs int    `json:"duration_ms"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		ReleaseDate string  `json:"release_date"`
		Images      []image `json:"images"`
	} `json:"album"`
}

type image struct {
	URL string `json:"url"`
}

// buildSnapshot normalizes a currently-playing payload.
func buildSnapshot(p currentlyPlaying) TrackSnapshot {
	if p.Item == nil {
		return InactiveSnapshot()
	}
	item := p.Item

	var artist string
	if len(item.Artists) > 0 {
		artist = item.Artists[0].Name
	}

	return TrackSnapshot{
		IsActive: true,
		Track: &TrackItem{
			ID:          item.ID,
			Title:       item.Name,
			ReleaseDate: item.Album.ReleaseDate,
			Artist:      artist,
			ImageURL:    pickImage(item.Album.Images),
			IsPlaying:   p.IsPlaying,
			Explicit:    item.Explicit,
			DurationMs:  item.DurationMs,
			ProgressMs:  p.ProgressMs,
		},
	}
}

// pickImage prefers the second (medium sized) album image, falling back to
// the first.
func pickImage(images []image) string {
	switch {
	case len(images) == 0:
		return ""
	case len(images) > 1 && images[1].URL != "":
		return images[1].URL
	default:
		return images[0].URL
	}
}
