package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/hwaccel"
	"github.com/xaionaro-go/hwaccel/codecprofile"
	"github.com/xaionaro-go/hwaccel/libav"
	"github.com/xaionaro-go/hwaccel/vaapi"
	"github.com/xaionaro-go/hwaccel/vaapi/libva"
	"github.com/xaionaro-go/observability"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [flags]\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	devices := pflag.StringArray("device", nil, "a device path to probe (can be repeated); overrides the config")
	configPath := pflag.String("config", "", "path to a YAML config of the device discovery")
	codecName := pflag.String("codec", "h264", "codec: mpeg2video, h264 or hevc")
	profileName := pflag.String("profile", "", "codec profile, e.g. 'high' or 'main10'")
	pixFmtName := pflag.String("pix-fmt", "yuv420p", "software pixel format of the codec")
	width := pflag.Int("width", 1920, "coded width")
	height := pflag.Int("height", 1080, "coded height")
	encode := pflag.Bool("encode", false, "negotiate an encode session instead of a decode one")
	codecProfilePath := pflag.String("codec-profile", "", "path to a YAML encoder profile (used with --encode)")
	useLibAV := pflag.Bool("libav", false, "also open the libavcodec codec on the negotiated device")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()
	if len(pflag.Args()) != 0 {
		pflag.Usage()
		os.Exit(1)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		listener, err := net.Listen("tcp", *netPprofAddr)
		if err != nil {
			l.Fatal(err)
		}
		serveNetPprof(ctx, listener)
	}

	cfg := hwaccel.DefaultConfig()
	if *configPath != "" {
		b, err := os.ReadFile(*configPath)
		if err != nil {
			l.Fatal(err)
		}
		cfg, err = hwaccel.ParseConfigYAML(b)
		if err != nil {
			l.Fatal(err)
		}
	}
	if len(*devices) > 0 {
		cfg.DevicePaths = *devices
	}

	codecID, err := hwaccel.ParseCodecID(*codecName)
	if err != nil {
		l.Fatal(err)
	}
	profile, err := hwaccel.ParseProfileHint(codecID, *profileName)
	if err != nil {
		l.Fatal(err)
	}
	pixFmt, err := hwaccel.ParsePixelFormat(*pixFmtName)
	if err != nil {
		l.Fatal(err)
	}

	var profileCfg codecprofile.Config
	if *codecProfilePath != "" {
		b, err := os.ReadFile(*codecProfilePath)
		if err != nil {
			l.Fatal(err)
		}
		profileCfg, err = codecprofile.ParseConfigYAML(b)
		if err != nil {
			l.Fatal(err)
		}
	}

	module := vaapi.NewModule(libva.NewOpener(), cfg)
	defer func() {
		if err := module.Shutdown(ctx); err != nil {
			errmon.ObserveErrorCtx(ctx, err)
		}
	}()

	if *useLibAV {
		probeLibAV(ctx, module, codecID, profile, pixFmt, *width, *height, *encode, profileCfg)
		return
	}

	cc := &hwaccel.CodecContext{
		CodecID:       codecID,
		CodecName:     codecID.String(),
		Profile:       profile,
		SwPixelFormat: pixFmt,
		CodedWidth:    *width,
		CodedHeight:   *height,
		Capabilities:  hwaccel.CodecCapabilityDirectRendering,
	}

	if !*encode {
		if err := module.SetupDecode(ctx, cc); err != nil {
			l.Fatal(err)
		}
		defer module.TeardownDecode(ctx, cc)
		printSession(cc.HWAccel.(*vaapi.Session))
		return
	}

	descriptor, ok := codecprofile.ForCodec(codecID)
	if profileCfg.Codec != "" {
		descriptor, ok = codecprofile.Lookup(profileCfg.Codec)
	}
	if !ok {
		l.Fatalf("no VAAPI encoder is known for codec %s", codecID)
	}
	if profile == hwaccel.ProfileHintUnknown {
		cc.Profile, err = codecprofile.ProfileHint(descriptor, profileCfg)
		if err != nil {
			l.Fatal(err)
		}
	}
	opts, err := descriptor.Open(ctx, profileCfg)
	if err != nil {
		l.Fatal(err)
	}

	if err := module.SetupEncode(ctx, cc); err != nil {
		l.Fatal(err)
	}
	defer module.TeardownEncode(ctx, cc)
	fmt.Printf("device: %s\n", cc.Opaque.(*vaapi.DeviceRef).Path())
	fmt.Printf("software format: %s\n", cc.SwPixelFormat)
	fmt.Printf("encoder: %s\n", descriptor.Name())
	fmt.Printf("encoder options: %s\n", opts)
}

// serveNetPprof serves net/http/pprof on the listener in background.
func serveNetPprof(ctx context.Context, listener net.Listener) {
	observability.Go(ctx, func(ctx context.Context) {
		errmon.ObserveErrorCtx(ctx, http.Serve(listener, nil))
	})
}

func printSession(s *vaapi.Session) {
	width, height := s.Size()
	fmt.Printf("device: %s\n", s.DeviceRef().Path())
	fmt.Printf("profile: %s\n", s.Profile())
	fmt.Printf("entry point: %s\n", s.EntryPoint())
	fmt.Printf("surface format: %s\n", s.RTFormat())
	fmt.Printf("software format: %s\n", s.SwFormat())
	fmt.Printf("size: %dx%d\n", width, height)
	fmt.Printf("frame pool: %d surfaces\n", s.FramePool().Size())
}

func probeLibAV(
	ctx context.Context,
	module *vaapi.Module,
	codecID hwaccel.CodecID,
	profile hwaccel.ProfileHint,
	pixFmt hwaccel.PixelFormat,
	width, height int,
	encode bool,
	profileCfg codecprofile.Config,
) {
	params, free, err := libav.NewCodecParameters(codecID, profile, pixFmt, width, height)
	if err != nil {
		logger.Fatal(ctx, err)
	}
	defer free()

	var codec *libav.Codec
	if encode {
		codec, err = libav.NewEncoder(ctx, module, params, profileCfg)
	} else {
		codec, err = libav.NewDecoder(ctx, module, "", params)
	}
	if err != nil {
		logger.Fatal(ctx, err)
	}
	defer func() {
		if err := codec.Close(); err != nil {
			errmon.ObserveErrorCtx(ctx, err)
		}
	}()

	acceleration := codec.Acceleration()
	fmt.Printf("libavcodec: opened %s\n", acceleration.CodecName)
	fmt.Printf("software format: %s\n", acceleration.SwPixelFormat)
	if s, ok := acceleration.HWAccel.(*vaapi.Session); ok {
		printSession(s)
	}
}
