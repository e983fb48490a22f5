package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/shotplayer/internal/audio"
	"github.com/ivlev/shotplayer/internal/catalog"
	"github.com/ivlev/shotplayer/internal/config"
	"github.com/ivlev/shotplayer/internal/control"
	"github.com/ivlev/shotplayer/internal/engine"
	"github.com/ivlev/shotplayer/internal/history"
	"github.com/ivlev/shotplayer/internal/review"
	"github.com/ivlev/shotplayer/internal/sink"
	"github.com/ivlev/shotplayer/internal/source"
	"github.com/ivlev/shotplayer/internal/system"
)

func main() {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	for _, d := range []string{"input/shots", "input/audio"} {
		os.MkdirAll(d, 0755)
	}

	configPtr := flag.String("config", "", "YAML-конфиг (флаги имеют приоритет)")
	shotsPtr := flag.String("shots", "", "Шот-лист CSV/YAML (по умолчанию: самый свежий файл в input/shots/)")
	audioPtr := flag.String("audio", "", "Путь к аудио (по умолчанию: из шот-листа или самый свежий файл в input/audio/)")
	noAudioPtr := flag.Bool("no-audio", false, "Воспроизведение без звука")
	deptPtr := flag.String("department", "", "Отдел (reparto): animazione, render, ...")
	fpsPtr := flag.Int("fps", 0, "FPS воспроизведения")
	cachePtr := flag.Int("cache", -1, "Размер очереди предзагрузки (0 - по свободной памяти)")
	startPtr := flag.Int("start", 0, "Глобальный индекс первого кадра")
	audioOffsetPtr := flag.Int("audio-offset", 0, "Смещение аудио в кадрах (по умолчанию равно -start)")
	loopPtr := flag.Bool("loop", false, "Зациклить воспроизведение")
	scenePtr := flag.Bool("scene", false, "Режим сцены: играть только выбранный шот")
	shotPtr := flag.String("shot", "", "ID шота для старта")
	httpPtr := flag.String("http", "", "Адрес HTTP API управления, например :8080")
	mqttPtr := flag.String("mqtt", "", "MQTT брокер host:port для удалённого управления")
	historyPtr := flag.String("history", "", "SQLite база истории сессий")
	listPtr := flag.Int("list", 0, "Показать N последних сессий из истории и выйти")
	verbosePtr := flag.Bool("v", false, "Подробный лог")

	flag.Parse()

	level := slog.LevelInfo
	if *verbosePtr {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configPtr != "" {
		loaded, err := config.Load(*configPtr)
		if err != nil {
			log.Fatalf("[-] Ошибка конфига: %v", err)
		}
		cfg = loaded
	}

	// Флаги перекрывают файл только если заданы явно
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "shots":
			cfg.ShotList = *shotsPtr
		case "audio":
			cfg.AudioPath = *audioPtr
		case "department":
			cfg.Department = *deptPtr
		case "fps":
			cfg.FPS = *fpsPtr
		case "cache":
			cfg.MaxCacheSize = *cachePtr
		case "start":
			cfg.StartIndex = *startPtr
		case "audio-offset":
			off := *audioOffsetPtr
			cfg.AudioOffsetFrames = &off
		case "loop":
			cfg.Loop = *loopPtr
		case "scene":
			cfg.SceneMode = *scenePtr
		case "http":
			cfg.HTTPAddr = *httpPtr
		case "mqtt":
			cfg.MQTT.Broker = *mqttPtr
		case "history":
			cfg.HistoryDB = *historyPtr
		}
	})

	if *listPtr > 0 {
		listHistory(cfg.HistoryDB, *listPtr)
		return
	}

	if cfg.ShotList == "" {
		latest, err := system.FindLatestShotList("input/shots")
		if err != nil {
			log.Fatalf("[-] Ошибка: %v. Положите шот-лист в input/shots/", err)
		}
		cfg.ShotList = latest
		fmt.Printf("[*] Выбран шот-лист: %s\n", cfg.ShotList)
	}

	cat, err := catalog.ReadFile(cfg.ShotList)
	if err != nil {
		log.Fatalf("[-] Ошибка шот-листа: %v", err)
	}

	audioPath := cfg.AudioPath
	if audioPath == "" {
		audioPath = cat.AudioPath()
	}
	if audioPath == "" {
		if latest, err := system.FindLatestAudio("input/audio"); err == nil {
			audioPath = latest
			fmt.Printf("[*] Выбрано аудио: %s\n", audioPath)
		}
	}
	if *noAudioPtr {
		audioPath = ""
	}
	if audioPath != cat.AudioPath() {
		if cat, err = catalog.New(cat.Shots(), audioPath); err != nil {
			log.Fatalf("[-] Ошибка шот-листа: %v", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Неверные параметры: %v", err)
	}

	loader := source.Default()
	playlist := cat.Playlist(cfg.Department)
	if playlist.Total() == 0 {
		fmt.Printf("[!] Отдел %q пуст, доступны: %v\n", cfg.Department, cat.Departments())
	} else {
		fmt.Printf("[*] Отдел %s: %d шотов, %d кадров (%.1fs при %d fps)\n",
			cfg.Department, playlist.Len(), playlist.Total(),
			float64(playlist.Total())/float64(cfg.FPS), cfg.FPS)
	}

	if cfg.MaxCacheSize == 0 {
		cfg.MaxCacheSize = suggestCache(playlist)
		fmt.Printf("[*] Размер очереди предзагрузки: %d кадров\n", cfg.MaxCacheSize)
	}

	var clock audio.Clock = audio.Nop{}
	if audioPath != "" {
		clock = audio.NewFFplay()
		if dur, err := system.GetAudioDuration(audioPath); err == nil {
			fmt.Printf("[*] Аудио: %s (%.2fs)\n", audioPath, dur)
		} else {
			fmt.Printf("[!] Не удалось получить длительность аудио: %v\n", err)
		}
	}

	// Кадры нужны только HTTP-превью
	var preview *sink.Preview
	var frames engine.Sink = sink.Discard{}
	if cfg.HTTPAddr != "" {
		preview = sink.NewPreview(cfg.Preview.Width, cfg.Preview.Height, cfg.Preview.JPEGQuality)
		frames = preview
	}

	options := []review.Option{
		review.WithAudio(clock),
		review.WithSink(frames),
		review.WithLogger(logger),
	}

	// Ошибки ниже завершают процесс только после отложенного закрытия ресурсов
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()
	fail := func(format string, args ...any) {
		log.Printf(format, args...)
		exitCode = 1
	}

	var store func(review.Session)
	if cfg.HistoryDB != "" {
		db, err := history.Open(cfg.HistoryDB)
		if err != nil {
			log.Fatalf("[-] Ошибка базы истории: %v", err)
		}
		defer db.Close()
		store = history.NewSessionRepo(db).Recorder(logger)
	}
	record := func(s review.Session) {
		printSession(s, audioPath != "")
		if store != nil {
			store(s)
		}
	}
	options = append(options, review.WithSessionFunc(record))

	ctrl := review.New(cat, loader, review.Options{
		Department:        cfg.Department,
		FPS:               cfg.FPS,
		MaxCacheSize:      cfg.MaxCacheSize,
		StartIndex:        cfg.StartIndex,
		AudioOffsetFrames: cfg.AudioOffsetFrames,
		Loop:              cfg.Loop,
		SceneMode:         cfg.SceneMode,
	}, options...)
	defer ctrl.Close()

	if *shotPtr != "" {
		if err := ctrl.SelectShot(*shotPtr); err != nil {
			fail("[-] Ошибка выбора шота: %v", err)
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	interactive := cfg.HTTPAddr != "" || cfg.MQTT.Broker != ""

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           control.NewRouter(ctrl, preview, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			fmt.Printf("[*] HTTP API: http://%s\n", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.MQTT.Broker != "" {
		client, err := control.Connect(cfg.MQTT, logger)
		if err != nil {
			fail("[-] Ошибка MQTT: %v", err)
			stop()
			g.Wait()
			return
		}
		defer client.Disconnect(250)
		remote := control.NewMQTT(client, ctrl, cfg.MQTT, logger)
		g.Go(func() error { return remote.Run(gctx, time.Second) })
	}

	if err := ctrl.Play(); err != nil {
		if !interactive {
			fail("[-] Ошибка запуска: %v", err)
			return
		}
		fmt.Printf("[!] Автозапуск не удался: %v. Ждём команд управления\n", err)
	} else {
		fmt.Printf("[*] Воспроизведение: %s, режим %s, старт %d, аудио с кадра %d\n",
			ctrl.Department(), ctrl.Status().Mode, cfg.StartIndex, cfg.AudioOffset())
	}

	g.Go(func() error {
		if !interactive {
			ctrl.Wait()
			stop()
			return nil
		}
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	ctrl.Close()
	if err != nil {
		fail("[-] Ошибка: %v", err)
		return
	}

	if _, ok := ctrl.LastSession(); !ok {
		fmt.Println("[!] Ни одной сессии не завершено")
		return
	}
	fmt.Println("[+++] Готово")
}

// suggestCache sizes the prefetch queue from the first frame's dimensions.
func suggestCache(p *catalog.Playlist) int {
	const fallback = 150
	paths := catalog.ResolvePaths(p)
	if len(paths) == 0 {
		return fallback
	}
	w, h, err := source.Dimensions(paths[0])
	if err != nil {
		fmt.Printf("[!] Не удалось прочитать первый кадр (%v), очередь по умолчанию\n", err)
		return fallback
	}
	return system.SuggestCacheSize(uint64(w*h*4), fallback, config.MinCacheSize, config.MaxCacheSize)
}

func printSession(s review.Session, withAudio bool) {
	rep := s.Report
	if s.Err != nil {
		fmt.Printf("[!] Сессия %s прервана: %v\n", s.ID, s.Err)
	}
	fmt.Printf("[*] Сессия %s (%s, %s): %s\n", s.ID, s.Department, s.Mode, rep)
	if withAudio && !rep.Audio {
		fmt.Println("[!] Звук отключён, видео шло без него")
	}
	if rep.Underrun {
		fmt.Printf("[!] Просадка FPS: %.2f из %.0f\n", rep.AverageFPS, rep.TargetFPS)
	}
	if rep.Reason == engine.EndFault {
		fmt.Println("[!] Сессия завершилась аварийно, ресурсы освобождены")
	}
}

func listHistory(path string, n int) {
	if path == "" {
		log.Fatalf("[-] Не задана база истории (-history)")
	}
	db, err := history.Open(path)
	if err != nil {
		log.Fatalf("[-] Ошибка базы истории: %v", err)
	}
	defer db.Close()

	recs, err := history.NewSessionRepo(db).Recent(context.Background(), n)
	if err != nil {
		log.Fatalf("[-] Ошибка чтения истории: %v", err)
	}
	if len(recs) == 0 {
		fmt.Println("[*] История пуста")
		return
	}
	for _, r := range recs {
		fmt.Println(r.Summary())
	}
}
