// Package codec provides a unified codec tag registry for video and audio
// codecs. It consolidates alias and FourCC resolution in one place; the
// ISO-BMFF demuxer resolves its sample-entry FourCCs through it instead of
// keeping a private name table.
package codec

import (
	"strings"

	"github.com/jmylchreest/bunker/internal/video"
)

type videoInfo struct {
	// All known aliases (encoder names, short names) that map to this codec.
	Aliases []string
	// ISO-BMFF sample entry FourCC tags that map to this codec.
	FourCCs []string
}

type audioInfo struct {
	Aliases []string
	FourCCs []string
}

var videoRegistry = map[video.VideoCodec]*videoInfo{
	video.VideoCodecH264: {
		Aliases: []string{"h264", "avc", "libx264", "h264_nvenc", "h264_qsv", "h264_vaapi"},
		FourCCs: []string{"avc1", "avc3"},
	},
	video.VideoCodecH265: {
		Aliases: []string{"h265", "hevc", "libx265", "hevc_nvenc", "hevc_qsv", "hevc_vaapi"},
		FourCCs: []string{"hvc1", "hev1"},
	},
	video.VideoCodecVP9: {
		Aliases: []string{"vp9", "libvpx-vp9"},
		FourCCs: []string{"vp09"},
	},
	video.VideoCodecAV1: {
		Aliases: []string{"av1", "libaom-av1", "librav1e"},
		FourCCs: []string{"av01"},
	},
}

var audioRegistry = map[video.AudioCodec]*audioInfo{
	video.AudioCodecAAC: {
		Aliases: []string{"aac", "mp4a", "libfdk_aac"},
		FourCCs: []string{"mp4a", "aac "},
	},
	video.AudioCodecOpus: {
		Aliases: []string{"opus", "libopus"},
		FourCCs: []string{"Opus"},
	},
	video.AudioCodecPCMS16: {
		Aliases: []string{"pcm_s16le", "pcm-s16", "s16le"},
		FourCCs: []string{"lpcm", "sowt", "twos", "ipcm"},
	},
	video.AudioCodecPCMF32: {
		Aliases: []string{"pcm_f32le", "pcm-f32", "f32le"},
		FourCCs: []string{"f32 ", "fl32"},
	},
}

var (
	videoAliasIndex  map[string]video.VideoCodec
	videoFourCCIndex map[string]video.VideoCodec
	audioAliasIndex  map[string]video.AudioCodec
	audioFourCCIndex map[string]video.AudioCodec
)

func init() {
	videoAliasIndex = make(map[string]video.VideoCodec)
	videoFourCCIndex = make(map[string]video.VideoCodec)
	for codec, info := range videoRegistry {
		for _, alias := range info.Aliases {
			videoAliasIndex[strings.ToLower(alias)] = codec
		}
		for _, fourCC := range info.FourCCs {
			videoFourCCIndex[fourCC] = codec
		}
	}

	audioAliasIndex = make(map[string]video.AudioCodec)
	audioFourCCIndex = make(map[string]video.AudioCodec)
	for codec, info := range audioRegistry {
		for _, alias := range info.Aliases {
			audioAliasIndex[strings.ToLower(alias)] = codec
		}
		for _, fourCC := range info.FourCCs {
			audioFourCCIndex[fourCC] = codec
		}
	}
}

// ParseVideo resolves an encoder name or codec alias to a canonical video codec.
func ParseVideo(s string) (video.VideoCodec, bool) {
	codec, ok := videoAliasIndex[strings.ToLower(strings.TrimSpace(s))]
	return codec, ok
}

// ParseAudio resolves an encoder name or codec alias to a canonical audio codec.
func ParseAudio(s string) (video.AudioCodec, bool) {
	codec, ok := audioAliasIndex[strings.ToLower(strings.TrimSpace(s))]
	return codec, ok
}

// VideoFromFourCC resolves an ISO-BMFF sample entry FourCC (e.g. "avc1") to
// its canonical video codec. Returns VideoCodecUnknown for an unrecognized tag.
func VideoFromFourCC(fourCC string) video.VideoCodec {
	if codec, ok := videoFourCCIndex[fourCC]; ok {
		return codec
	}
	return video.VideoCodecUnknown
}

// AudioFromFourCC resolves an ISO-BMFF sample entry FourCC to its canonical
// audio codec. Returns AudioCodecUnknown for an unrecognized tag.
func AudioFromFourCC(fourCC string) video.AudioCodec {
	if codec, ok := audioFourCCIndex[fourCC]; ok {
		return codec
	}
	return video.AudioCodecUnknown
}

// NormalizeVideo normalizes a video codec/encoder name to its canonical form,
// returning the input unchanged if it isn't recognized.
func NormalizeVideo(name string) string {
	if codec, ok := ParseVideo(name); ok {
		return string(codec)
	}
	return name
}

// NormalizeAudio normalizes an audio codec/encoder name to its canonical
// form, returning the input unchanged if it isn't recognized.
func NormalizeAudio(name string) string {
	if codec, ok := ParseAudio(name); ok {
		return string(codec)
	}
	return name
}
