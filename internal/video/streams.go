// Package video defines the media-stream carrier types produced by the
// bitstream parser (internal/video/h264) and the container demuxer
// (internal/video/container), and consumed by the video pipeline stages.
package video

import "time"

// PixelFormat tags the planar layout of a decoded frame's payload.
type PixelFormat string

// Supported pixel formats. Unknown is used when a decoder cannot determine
// the format of a frame it otherwise successfully parsed.
const (
	PixelFormatRGB     PixelFormat = "rgb"
	PixelFormatRGBA    PixelFormat = "rgba"
	PixelFormatYUV420  PixelFormat = "yuv420"
	PixelFormatYUV444  PixelFormat = "yuv444"
	PixelFormatUnknown PixelFormat = "unknown"
)

// FramePlanes holds the planar pixel payload for a frame. Which fields are
// populated (RGB, RGBA, or the Y/U/V planes) follows PixelFormat on the
// owning VideoFrame.
type FramePlanes struct {
	RGB      []byte
	RGBA     []byte
	Y, U, V  []byte
	External bool
}

// VideoFrame is a single decoded (or, for this skeleton, placeholder)
// picture.
type VideoFrame struct {
	Width, Height uint32
	PixelFormat   PixelFormat
	Planes        FramePlanes
	Timestamp     time.Duration
	Duration      time.Duration
	Keyframe      bool
}

// ChannelLayout tags an audio buffer's channel arrangement.
type ChannelLayout string

const (
	ChannelLayoutMono       ChannelLayout = "mono"
	ChannelLayoutStereo     ChannelLayout = "stereo"
	ChannelLayoutSurround51 ChannelLayout = "5.1"
	ChannelLayoutSurround71 ChannelLayout = "7.1"
)

// AudioBuffer is a block of decoded PCM samples.
type AudioBuffer struct {
	SampleRate    uint32
	ChannelLayout ChannelLayout
	Samples       []float32
}

// FrameRate is either a constant numerator/denominator ratio or variable.
type FrameRate struct {
	Variable    bool
	Numerator   uint32
	Denominator uint32
}

// ColorSpace tags the color primaries/transfer of a video stream.
type ColorSpace string

const (
	ColorSpaceBT601   ColorSpace = "bt601"
	ColorSpaceBT709   ColorSpace = "bt709"
	ColorSpaceBT2020  ColorSpace = "bt2020"
	ColorSpaceSRGB    ColorSpace = "srgb"
	ColorSpaceUnknown ColorSpace = "unknown"
)

// VideoCodec identifies the coding format of a video stream's samples.
type VideoCodec string

const (
	VideoCodecRaw     VideoCodec = "raw"
	VideoCodecH264    VideoCodec = "H264"
	VideoCodecH265    VideoCodec = "H265"
	VideoCodecVP9     VideoCodec = "VP9"
	VideoCodecAV1     VideoCodec = "AV1"
	VideoCodecUnknown VideoCodec = "unknown"
)

// AudioCodec identifies the coding format of an audio stream's samples.
type AudioCodec string

const (
	AudioCodecPCMS16  AudioCodec = "PCM-S16"
	AudioCodecPCMF32  AudioCodec = "PCM-F32"
	AudioCodecAAC     AudioCodec = "AAC"
	AudioCodecOpus    AudioCodec = "Opus"
	AudioCodecUnknown AudioCodec = "unknown"
)

// SubtitleCodec identifies the encoding of a subtitle stream's cues.
type SubtitleCodec string

const (
	SubtitleCodecSRT     SubtitleCodec = "srt"
	SubtitleCodecWebVTT  SubtitleCodec = "webvtt"
	SubtitleCodecASS     SubtitleCodec = "ass"
	SubtitleCodecUnknown SubtitleCodec = "unknown"
)

// SubtitleCue is a single timed subtitle line.
type SubtitleCue struct {
	Start, End time.Duration
	Text       string
}

// VideoStream is the video track extracted by the demuxer or parser.
type VideoStream struct {
	Codec      VideoCodec
	FrameRate  FrameRate
	Frames     []VideoFrame
	ColorSpace ColorSpace
}

// AudioStream is the audio track extracted by the demuxer.
type AudioStream struct {
	Codec   AudioCodec
	Buffers []AudioBuffer
}

// SubtitleStream is a subtitle track extracted by the demuxer.
type SubtitleStream struct {
	Codec SubtitleCodec
	Cues  []SubtitleCue
}

// MediaStreams is the full set of tracks extracted from an input asset.
type MediaStreams struct {
	Video      *VideoStream
	Audio      *AudioStream
	Subtitles  []SubtitleStream
	Duration   time.Duration
	HasSamples bool
}
