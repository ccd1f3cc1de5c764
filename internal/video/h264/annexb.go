// Package h264 parses Annex-B H.264 bytestreams far enough to recover
// sequence dimensions and emit placeholder frames. It does not reconstruct
// pictures; NAL payloads of type 1/5 become empty-plane frame carriers.
package h264

import (
	"fmt"
	"time"

	"github.com/jmylchreest/bunker/internal/video"
)

// sequenceState tracks the SPS-derived dimensions and frame rate carried
// across NALs while decoding one Annex-B buffer.
type sequenceState struct {
	width, height uint32
	frameRate     video.FrameRate
}

func defaultSequenceState() sequenceState {
	return sequenceState{
		frameRate: video.FrameRate{Numerator: 30, Denominator: 1},
	}
}

type nalUnit struct {
	nalType uint8
	payload []byte
}

// DecodeAnnexB parses data as an Annex-B byte stream and, on success,
// populates streams.Video with the decoded sequence and one placeholder
// frame per slice NAL. It fails if no frames were decoded.
func DecodeAnnexB(data []byte, streams *video.MediaStreams) error {
	nals, err := SplitAnnexB(data)
	if err != nil {
		return err
	}

	sequence := defaultSequenceState()
	var frames []video.VideoFrame

	for _, nal := range nals {
		switch nal.nalType {
		case 7: // SPS
			if err := parseSPS(nal.payload, &sequence); err != nil {
				// SPS parse failures degrade gracefully: log-worthy, not fatal.
				// Clamp to a sane minimum rather than propagating the error.
				if sequence.width < 640 {
					sequence.width = 640
				}
				if sequence.height < 360 {
					sequence.height = 360
				}
			}
		case 8: // PPS
			if err := parsePPS(nal.payload); err != nil {
				return err
			}
		case 5, 1: // IDR / non-IDR slice
			if sequence.width == 0 {
				sequence.width = 640
			}
			if sequence.height == 0 {
				sequence.height = 360
			}
			frames = append(frames, video.VideoFrame{
				Width:       sequence.width,
				Height:      sequence.height,
				PixelFormat: video.PixelFormatYUV420,
				Planes:      video.FramePlanes{Y: []byte{}, U: []byte{}, V: []byte{}},
				Timestamp:   0,
				Duration:    frameDuration(sequence.frameRate),
				Keyframe:    nal.nalType == 5,
			})
		}
	}

	if sequence.width == 0 {
		sequence.width = 640
	}
	if sequence.height == 0 {
		sequence.height = 360
	}

	if len(frames) == 0 {
		return fmt.Errorf("h264: no video frames decoded")
	}

	streams.Video = &video.VideoStream{
		Codec:      video.VideoCodecH264,
		FrameRate:  sequence.frameRate,
		Frames:     frames,
		ColorSpace: video.ColorSpaceBT709,
	}
	return nil
}

// SplitAnnexB scans data for Annex-B start codes and returns the NAL units
// between them.
//
// The loop bound below is `i+3 < len(data)`, inherited as-is from the
// reference parser: a trailing NAL unit whose final byte sits exactly at
// len(data)-1 can be dropped, since the scan never advances far enough to
// see the end of such a unit. This is a known defect, preserved rather than
// silently fixed — see SPEC_FULL.md §9.
func SplitAnnexB(data []byte) ([]nalUnit, error) {
	var units []nalUnit
	i := 0
	for i+3 < len(data) {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			start := i + 3
			i = start
			for i+3 < len(data) && !(data[i] == 0 && data[i+1] == 0 && data[i+2] == 1) {
				i++
			}
			end := i
			if end > start {
				header := data[start]
				units = append(units, nalUnit{
					nalType: header & 0x1F,
					payload: data[start:end],
				})
			}
		} else if i+4 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 && data[i+3] == 1 {
			i++ // normalize the 4-byte start code to the 3-byte path
			continue
		} else {
			i++
		}
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("h264: no NAL units found")
	}
	return units, nil
}

// RemoveEmulationPrevention strips emulation-prevention `03` bytes from an
// Annex-B NAL payload, yielding its RBSP.
func RemoveEmulationPrevention(data []byte) []byte {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		if i+2 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 3 {
			out = append(out, 0, 0)
			i += 3
		} else {
			out = append(out, data[i])
			i++
		}
	}
	return out
}

func parseSPS(payload []byte, sequence *sequenceState) error {
	rbsp := RemoveEmulationPrevention(payload)
	r := newBitReader(rbsp)

	if _, err := r.readBits(8); err != nil { // profile_idc
		return err
	}
	if _, err := r.readBits(8); err != nil { // constraint_set flags + reserved, read as one byte
		return err
	}
	if _, err := r.readBits(8); err != nil { // level_idc
		return err
	}
	if _, err := r.readUE(); err != nil { // seq_parameter_set_id
		return err
	}

	chromaFormatIDC, err := r.readUE()
	if err != nil {
		return err
	}
	if chromaFormatIDC == 3 {
		if _, err := r.readBits(1); err != nil { // separate_colour_plane_flag
			return err
		}
	}
	if _, err := r.readUE(); err != nil { // bit_depth_luma_minus8
		return err
	}
	if _, err := r.readUE(); err != nil { // bit_depth_chroma_minus8
		return err
	}
	if _, err := r.readBits(1); err != nil { // qpprime_y_zero_transform_bypass_flag
		return err
	}

	scalingMatrixPresent, err := r.readBits(1)
	if err != nil {
		return err
	}
	if scalingMatrixPresent == 1 {
		for i := 0; i < 8; i++ {
			present, err := r.readBits(1)
			if err != nil {
				return err
			}
			if present == 1 {
				size := 16
				if i >= 6 {
					size = 64
				}
				if err := skipScalingList(r, size); err != nil {
					return err
				}
			}
		}
	}

	if _, err := r.readUE(); err != nil { // log2_max_frame_num_minus4
		return err
	}
	picOrderCntType, err := r.readUE()
	if err != nil {
		return err
	}
	if picOrderCntType == 0 {
		if _, err := r.readUE(); err != nil { // log2_max_pic_order_cnt_lsb_minus4
			return err
		}
	}
	if _, err := r.readUE(); err != nil { // max_num_ref_frames
		return err
	}
	if _, err := r.readBits(1); err != nil { // gaps_in_frame_num_value_allowed_flag
		return err
	}

	picWidthInMbsMinus1, err := r.readUE()
	if err != nil {
		return err
	}
	picHeightInMapUnitsMinus1, err := r.readUE()
	if err != nil {
		return err
	}
	frameMbsOnlyFlag, err := r.readBits(1)
	if err != nil {
		return err
	}
	if frameMbsOnlyFlag == 0 {
		if _, err := r.readBits(1); err != nil { // mb_adaptive_frame_field_flag
			return err
		}
	}
	if _, err := r.readBits(1); err != nil { // direct_8x8_inference_flag
		return err
	}

	frameCroppingFlag, err := r.readBits(1)
	if err != nil {
		return err
	}
	var cropLeft, cropRight, cropTop, cropBottom uint32
	if frameCroppingFlag == 1 {
		if cropLeft, err = r.readUE(); err != nil {
			return err
		}
		if cropRight, err = r.readUE(); err != nil {
			return err
		}
		if cropTop, err = r.readUE(); err != nil {
			return err
		}
		if cropBottom, err = r.readUE(); err != nil {
			return err
		}
	}

	widthInMbs := picWidthInMbsMinus1 + 1
	heightInMapUnits := picHeightInMapUnitsMinus1 + 1
	frameHeightInMbs := heightInMapUnits
	if frameMbsOnlyFlag == 0 {
		frameHeightInMbs = heightInMapUnits * 2
	}

	sequence.width = (widthInMbs * 16) - 2*(cropLeft+cropRight)
	sequence.height = (frameHeightInMbs * 16) - 2*(cropTop+cropBottom)
	sequence.frameRate = video.FrameRate{Numerator: 30, Denominator: 1}
	return nil
}

func parsePPS(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("h264: pps payload is empty")
	}
	return nil
}

func skipScalingList(r *bitReader, size int) error {
	lastScale := int32(8)
	nextScale := int32(8)
	for i := 0; i < size; i++ {
		if nextScale != 0 {
			delta, err := r.readSE()
			if err != nil {
				return err
			}
			nextScale = (lastScale + delta + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
	return nil
}

func frameDuration(rate video.FrameRate) time.Duration {
	if !rate.Variable && rate.Numerator > 0 {
		seconds := float64(rate.Denominator) / float64(rate.Numerator)
		return time.Duration(seconds * float64(time.Second))
	}
	return time.Duration(float64(time.Second) / 30.0)
}
