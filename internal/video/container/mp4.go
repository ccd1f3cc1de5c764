// Package container implements a minimal ISO-BMFF (MP4) demuxer: enough to
// walk moov/trak/mdia/minf/stbl/stsd and recover codec identity, dimensions,
// and timescale/duration for a video and an audio track; when several tracks
// of one kind are present, the last one walked wins. It does not read sample
// data.
package container

import (
	"encoding/binary"
	"fmt"

	"github.com/jmylchreest/bunker/internal/codec"
	"github.com/jmylchreest/bunker/internal/video"
)

type atom struct {
	kind string
	data []byte
}

// readAtom reads one top-level-shaped atom (4-byte big-endian size, 4-byte
// FourCC, payload) from data starting at offset. It returns the atom and the
// offset immediately following it, or ok=false at end of buffer.
func readAtom(data []byte, offset int) (atom, int, bool, error) {
	if offset >= len(data) {
		return atom{}, offset, false, nil
	}
	if offset+8 > len(data) {
		return atom{}, offset, false, fmt.Errorf("container: truncated atom header")
	}
	size := binary.BigEndian.Uint32(data[offset : offset+4])
	if size < 8 {
		return atom{}, offset, false, fmt.Errorf("container: invalid atom size %d", size)
	}
	kind := string(data[offset+4 : offset+8])
	payloadLen := int(size) - 8
	start := offset + 8
	end := start + payloadLen
	if end > len(data) {
		return atom{}, offset, false, fmt.Errorf("container: atom payload exceeds buffer bounds")
	}
	return atom{kind: kind, data: data[start:end]}, end, true, nil
}

type videoTrack struct {
	codec         video.VideoCodec
	width, height uint32
	timescale     uint32
	duration      uint32
	frameCount    uint32
}

type audioTrack struct {
	codec               video.AudioCodec
	sampleRate          uint32
	channels            uint16
	timescale, duration uint32
}

type trackCollector struct {
	video *videoTrack
	audio *audioTrack
}

// Demux walks the top-level atoms in data, descending only into moov, and
// returns the MediaStreams it can recover. It does not decode samples.
func Demux(data []byte) (video.MediaStreams, error) {
	var collector trackCollector

	offset := 0
	for {
		a, next, ok, err := readAtom(data, offset)
		if err != nil {
			return video.MediaStreams{}, err
		}
		if !ok {
			break
		}
		if a.kind == "moov" {
			if err := collectMoov(a.data, &collector); err != nil {
				return video.MediaStreams{}, err
			}
		}
		offset = next
	}

	var streams video.MediaStreams
	if v := collector.video; v != nil {
		duration := v.duration
		if duration < 1 {
			duration = 1
		}
		streams.Video = &video.VideoStream{
			Codec: v.codec,
			// Preserved from the reference implementation: frame_count is
			// always 0 at demux time (samples are never read), so this
			// ratio does not actually carry a frame rate. Likely swapped
			// semantics; see SPEC_FULL.md §9.
			FrameRate:  video.FrameRate{Numerator: v.frameCount, Denominator: duration},
			Frames:     nil,
			ColorSpace: video.ColorSpaceBT709,
		}
	}
	if a := collector.audio; a != nil {
		streams.Audio = &video.AudioStream{Codec: a.codec}
	}
	return streams, nil
}

func collectMoov(data []byte, collector *trackCollector) error {
	offset := 0
	for {
		a, next, ok, err := readAtom(data, offset)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if a.kind == "trak" {
			if err := collectTrak(a.data, collector); err != nil {
				return err
			}
		}
		offset = next
	}
	return nil
}

func collectTrak(data []byte, collector *trackCollector) error {
	var tkhdTimescale, tkhdDuration *uint32
	var mdiaData []byte

	offset := 0
	for {
		a, next, ok, err := readAtom(data, offset)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		switch a.kind {
		case "tkhd":
			if len(a.data) == 0 {
				return fmt.Errorf("container: tkhd missing version")
			}
			version := a.data[0]
			durationOffset, timescaleOffset := 24, 12
			if version == 1 {
				durationOffset, timescaleOffset = 28, 20
			}
			if len(a.data) < timescaleOffset+4 || len(a.data) < durationOffset+4 {
				return fmt.Errorf("container: tkhd too short")
			}
			ts := readU32(a.data[timescaleOffset : timescaleOffset+4])
			d := readU32(a.data[durationOffset : durationOffset+4])
			tkhdTimescale, tkhdDuration = &ts, &d
		case "mdia":
			mdiaData = a.data
		}
		offset = next
	}

	if mdiaData == nil {
		return fmt.Errorf("container: trak missing mdia")
	}
	return parseMedia(mdiaData, tkhdTimescale, tkhdDuration, collector)
}

func parseMedia(data []byte, tkTimescale, tkDuration *uint32, collector *trackCollector) error {
	var hdlrType []byte
	var mdhdTimescale, mdhdDuration *uint32
	var stsdData []byte

	offset := 0
	for {
		a, next, ok, err := readAtom(data, offset)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		switch a.kind {
		case "hdlr":
			if len(a.data) >= 12 {
				hdlrType = a.data[8:12]
			}
		case "mdhd":
			if len(a.data) == 0 {
				return fmt.Errorf("container: mdhd missing version")
			}
			version := a.data[0]
			timescaleOffset, durationOffset := 12, 16
			if version == 1 {
				timescaleOffset, durationOffset = 20, 24
			}
			if len(a.data) < timescaleOffset+4 || len(a.data) < durationOffset+4 {
				return fmt.Errorf("container: mdhd too short")
			}
			ts := readU32(a.data[timescaleOffset : timescaleOffset+4])
			d := readU32(a.data[durationOffset : durationOffset+4])
			mdhdTimescale, mdhdDuration = &ts, &d
		case "minf":
			stsd, err := findStsd(a.data)
			if err != nil {
				return err
			}
			if stsd != nil {
				stsdData = stsd
			}
		}
		offset = next
	}

	if hdlrType == nil {
		return nil // unknown handler type: nothing to record
	}

	timescale := uint32(1)
	if mdhdTimescale != nil {
		timescale = *mdhdTimescale
	} else if tkTimescale != nil {
		timescale = *tkTimescale
	}
	duration := uint32(0)
	if mdhdDuration != nil {
		duration = *mdhdDuration
	} else if tkDuration != nil {
		duration = *tkDuration
	}

	if stsdData == nil {
		return fmt.Errorf("container: stsd not found")
	}
	if len(stsdData) < 16 {
		return fmt.Errorf("container: invalid stsd atom")
	}
	entryCount := readU32(stsdData[4:8])
	if entryCount == 0 {
		return nil
	}
	entrySize := int(readU32(stsdData[8:12]))
	if entrySize+8 > len(stsdData) {
		return fmt.Errorf("container: stsd entry exceeds buffer")
	}
	entryData := stsdData[12 : 12+entrySize]
	if len(entryData) < 8 {
		return fmt.Errorf("container: stsd entry too short")
	}
	codecFourCC := string(entryData[4:8])

	switch string(hdlrType) {
	case "vide":
		if len(entryData) < 36 {
			return fmt.Errorf("container: video sample entry too short")
		}
		width := binary.BigEndian.Uint16(entryData[32:34])
		height := binary.BigEndian.Uint16(entryData[34:36])
		collector.video = &videoTrack{
			codec:      videoCodecForFourCC(codecFourCC),
			width:      uint32(width),
			height:     uint32(height),
			timescale:  timescale,
			duration:   duration,
			frameCount: 0,
		}
	case "soun":
		if len(entryData) < 28 {
			return fmt.Errorf("container: audio sample entry too short")
		}
		channels := binary.BigEndian.Uint16(entryData[16:18])
		sampleRateFixed := readU32(entryData[24:28])
		collector.audio = &audioTrack{
			codec:      audioCodecForFourCC(codecFourCC),
			sampleRate: sampleRateFixed >> 16,
			channels:   channels,
			timescale:  timescale,
			duration:   duration,
		}
	}
	return nil
}

// findStsd descends minf -> stbl -> stsd and returns the stsd payload, if any.
func findStsd(minfData []byte) ([]byte, error) {
	offset := 0
	for {
		a, next, ok, err := readAtom(minfData, offset)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if a.kind == "stbl" {
			stblOffset := 0
			for {
				grandchild, gnext, gok, gerr := readAtom(a.data, stblOffset)
				if gerr != nil {
					return nil, gerr
				}
				if !gok {
					break
				}
				if grandchild.kind == "stsd" {
					return grandchild.data, nil
				}
				stblOffset = gnext
			}
		}
		offset = next
	}
	return nil, nil
}

// videoCodecForFourCC and audioCodecForFourCC resolve a stsd sample entry
// FourCC via the shared codec tag registry, rather than keeping a private
// copy of the tag table here.
func videoCodecForFourCC(fourCC string) video.VideoCodec {
	return codec.VideoFromFourCC(fourCC)
}

func audioCodecForFourCC(fourCC string) video.AudioCodec {
	return codec.AudioFromFourCC(fourCC)
}

func readU32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b[:4])
}
