package extract

import "strconv"

// EncodeProfile is a fixed set of encoder settings for one extraction tier.
// Profiles are values, never mutated after construction; callers that need a
// variation build their own.
type EncodeProfile struct {
	Name       string
	VideoCodec string
	AudioCodec string
	CRF        int
	Preset     string
	ExtraArgs  []string
}

// Profiles groups the encode profiles used by the tier chain.
type Profiles struct {
	SmartCut   EncodeProfile
	ReEncode   EncodeProfile
	Fallback   EncodeProfile
	LastResort EncodeProfile
}

// DefaultProfiles returns the standard tier profiles.
func DefaultProfiles() Profiles {
	return Profiles{
		SmartCut: EncodeProfile{
			Name:       "smart_cut",
			VideoCodec: "libx264",
			AudioCodec: "aac",
			CRF:        18,
			Preset:     "fast",
		},
		ReEncode: EncodeProfile{
			Name:       "re_encode",
			VideoCodec: "libx264",
			AudioCodec: "aac",
			CRF:        18,
			Preset:     "medium",
			ExtraArgs:  []string{"-movflags", "+faststart"},
		},
		Fallback: EncodeProfile{
			Name:       "fallback",
			VideoCodec: "mpeg4",
			AudioCodec: "aac",
			ExtraArgs:  []string{"-q:v", "5"},
		},
		// Empty codecs let ffmpeg pick its container defaults. The tier of
		// last resort before giving up entirely.
		LastResort: EncodeProfile{
			Name: "last_resort",
		},
	}
}

// args renders the profile as ffmpeg output arguments.
func (p EncodeProfile) args() []string {
	var args []string
	if p.VideoCodec != "" {
		args = append(args, "-c:v", p.VideoCodec)
	}
	if p.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(p.CRF))
	}
	if p.Preset != "" {
		args = append(args, "-preset", p.Preset)
	}
	if p.AudioCodec != "" {
		args = append(args, "-c:a", p.AudioCodec)
	}
	args = append(args, p.ExtraArgs...)
	return args
}
