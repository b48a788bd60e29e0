package vaapi

import (
	"context"
	"fmt"
	"slices"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/hwaccel"
)

type profileKey struct {
	CodecID hwaccel.CodecID
	Hint    hwaccel.ProfileHint
}

var profileTable = map[profileKey]hwaccel.Profile{
	{hwaccel.CodecIDMPEG2Video, hwaccel.ProfileHintUnknown}:     hwaccel.ProfileMPEG2Main,
	{hwaccel.CodecIDMPEG2Video, hwaccel.ProfileHintMPEG2Main}:   hwaccel.ProfileMPEG2Main,
	{hwaccel.CodecIDMPEG2Video, hwaccel.ProfileHintMPEG2Simple}: hwaccel.ProfileMPEG2Simple,

	{hwaccel.CodecIDH264, hwaccel.ProfileHintUnknown}:                 hwaccel.ProfileH264High,
	{hwaccel.CodecIDH264, hwaccel.ProfileHintH264High}:                hwaccel.ProfileH264High,
	{hwaccel.CodecIDH264, hwaccel.ProfileHintH264Baseline}:            hwaccel.ProfileH264Baseline,
	{hwaccel.CodecIDH264, hwaccel.ProfileHintH264ConstrainedBaseline}: hwaccel.ProfileH264ConstrainedBaseline,
	{hwaccel.CodecIDH264, hwaccel.ProfileHintH264Main}:                hwaccel.ProfileH264Main,

	{hwaccel.CodecIDHEVC, hwaccel.ProfileHintUnknown}:    hwaccel.ProfileHEVCMain,
	{hwaccel.CodecIDHEVC, hwaccel.ProfileHintHEVCMain}:   hwaccel.ProfileHEVCMain,
	{hwaccel.CodecIDHEVC, hwaccel.ProfileHintHEVCMain10}: hwaccel.ProfileHEVCMain10,
}

// CandidateProfile maps a codec and its profile hint to the only device
// profile that may serve it.
func CandidateProfile(
	codecID hwaccel.CodecID,
	hint hwaccel.ProfileHint,
) (hwaccel.Profile, bool) {
	p, ok := profileTable[profileKey{CodecID: codecID, Hint: hint}]
	if !ok {
		return hwaccel.ProfileNone, false
	}
	return p, true
}

// NegotiateProfile picks the device profile for the codec and checks that
// the device supports both the profile and the requested entry point.
// There is no fallback to any other profile.
func NegotiateProfile(
	ctx context.Context,
	dev hwaccel.Device,
	codecID hwaccel.CodecID,
	hint hwaccel.ProfileHint,
	entryPoint hwaccel.EntryPoint,
) (_ret hwaccel.Profile, _err error) {
	logger.Tracef(ctx, "NegotiateProfile(ctx, %s, %s, %s)", codecID, hint, entryPoint)
	defer func() {
		logger.Tracef(ctx, "/NegotiateProfile(ctx, %s, %s, %s): %s %v", codecID, hint, entryPoint, _ret, _err)
	}()

	unsupported := func(err error) error {
		return hwaccel.NewError(
			hwaccel.ErrUnsupportedCodecOrProfile,
			"negotiate profile",
			fmt.Errorf("unsupported codec: %s and/or profile: %s: %w", codecID, hint, err),
		)
	}

	candidate, ok := CandidateProfile(codecID, hint)
	if !ok {
		return hwaccel.ProfileNone, unsupported(fmt.Errorf("no acceleration profile is known"))
	}

	profiles, err := dev.QueryProfiles(ctx)
	if err != nil {
		return hwaccel.ProfileNone, unsupported(fmt.Errorf("unable to query profiles: %w", err))
	}
	if !slices.Contains(profiles, candidate) {
		return hwaccel.ProfileNone, unsupported(fmt.Errorf("the device does not support %s", candidate))
	}

	entryPoints, err := dev.QueryEntryPoints(ctx, candidate)
	if err != nil {
		return hwaccel.ProfileNone, unsupported(fmt.Errorf("unable to query entry points of %s: %w", candidate, err))
	}
	if !slices.Contains(entryPoints, entryPoint) {
		return hwaccel.ProfileNone, unsupported(fmt.Errorf("the device does not support %s for %s", entryPoint, candidate))
	}

	return candidate, nil
}
