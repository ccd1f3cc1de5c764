// Package quality computes reference/candidate image-quality metrics used
// by the pipeline executor's quality gates.
//
// SSIM here is deliberately the non-canonical, whole-image (not 8x8/11x11
// sliding-window) variant: a single global mean/variance/covariance over
// the full luminance plane. This is intentional for this engine, not a
// standards-compliant SSIM implementation — see SPEC_FULL.md §9.
package quality

import (
	"fmt"
	"image"
	"math"
)

// Metrics holds the three quality scores computed over a reference/candidate
// image pair.
type Metrics struct {
	MSE  float64
	PSNR float64
	SSIM float64
}

// Compute returns MSE, PSNR, and SSIM for reference vs. candidate. Both
// images must share dimensions.
func Compute(reference, candidate image.Image) (Metrics, error) {
	if err := ensureDimensionsMatch(reference, candidate); err != nil {
		return Metrics{}, err
	}

	mse := meanSquaredError(reference, candidate)
	psnr := peakSignalToNoiseRatio(mse)
	ssim, err := structuralSimilarity(reference, candidate)
	if err != nil {
		return Metrics{}, err
	}

	return Metrics{MSE: mse, PSNR: psnr, SSIM: ssim}, nil
}

func ensureDimensionsMatch(reference, candidate image.Image) error {
	rb, cb := reference.Bounds(), candidate.Bounds()
	if rb.Dx() != cb.Dx() || rb.Dy() != cb.Dy() {
		return fmt.Errorf("cannot compute metrics: dimension mismatch %dx%d vs %dx%d",
			rb.Dx(), rb.Dy(), cb.Dx(), cb.Dy())
	}
	return nil
}

// meanSquaredError is the mean of squared per-channel (R, G, B) differences;
// the denominator is width * height * 3.
func meanSquaredError(reference, candidate image.Image) float64 {
	bounds := reference.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var total float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r1, g1, b1, _ := reference.At(x, y).RGBA()
			r2, g2, b2, _ := candidate.At(x, y).RGBA()
			total += channelDiffSquared(r1, r2)
			total += channelDiffSquared(g1, g2)
			total += channelDiffSquared(b1, b2)
		}
	}
	return total / float64(width*height*3)
}

// channelDiffSquared converts two 16-bit RGBA channel samples to 8-bit space
// (matching image.Image.At's convention of to_rgb8 in the reference
// implementation) before differencing.
func channelDiffSquared(a, b uint32) float64 {
	diff := float64(a>>8) - float64(b>>8)
	return diff * diff
}

func peakSignalToNoiseRatio(mse float64) float64 {
	if mse == 0.0 {
		return math.Inf(1)
	}
	return 20.0*math.Log10(255.0) - 10.0*math.Log10(mse)
}

func structuralSimilarity(reference, candidate image.Image) (float64, error) {
	refGray := toLuma32f(reference)
	candGray := toLuma32f(candidate)

	meanRef := mean(refGray)
	meanCand := mean(candGray)
	cov := covariance(refGray, candGray, meanRef, meanCand)
	varRef := variance(refGray, meanRef)
	varCand := variance(candGray, meanCand)

	const c1 = (0.01 * 255.0) * (0.01 * 255.0)
	const c2 = (0.03 * 255.0) * (0.03 * 255.0)

	numerator := (2.0*meanRef*meanCand + c1) * (2.0*cov + c2)
	denominator := (meanRef*meanRef + meanCand*meanCand + c1) * (varRef + varCand + c2)
	if denominator == 0.0 {
		return 0, fmt.Errorf("SSIM denominator is zero")
	}
	return numerator / denominator, nil
}

// toLuma32f converts an image to a flat slice of per-pixel luminance values
// in [0, 255], the 32-bit-float analog of image::DynamicImage::to_luma32f.
func toLuma32f(img image.Image) []float64 {
	bounds := img.Bounds()
	out := make([]float64, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// Rec. 709/sRGB luma weights, matching image-rs's Luma conversion.
			l := 0.2126*float64(r>>8) + 0.7152*float64(g>>8) + 0.0722*float64(b>>8)
			out = append(out, l)
		}
	}
	return out
}

func mean(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

func variance(samples []float64, m float64) float64 {
	var sum float64
	for _, s := range samples {
		d := s - m
		sum += d * d
	}
	return sum / float64(len(samples))
}

func covariance(a, b []float64, meanA, meanB float64) float64 {
	var sum float64
	for i := range a {
		sum += (a[i] - meanA) * (b[i] - meanB)
	}
	return sum / float64(len(a))
}
