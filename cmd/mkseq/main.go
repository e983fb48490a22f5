// Command mkseq writes a synthetic review episode: QR-coded PNG frames per
// department and shot, plus the shot list that references them.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ivlev/shotplayer/internal/catalog"
)

func main() {
	outPtr := flag.String("out", "input/shots/demo", "Папка для кадров")
	listPtr := flag.String("list", "input/shots/demo.csv", "Путь к шот-листу (.csv или .yaml)")
	deptPtr := flag.String("departments", "animazione,render", "Отделы через запятую")
	shotsPtr := flag.Int("shots", 3, "Шотов на отдел")
	framesPtr := flag.Int("frames", 24, "Кадров в шоте")
	firstPtr := flag.Int("first", 1001, "Номер первого кадра шота")
	widthPtr := flag.Int("width", 640, "Ширина")
	heightPtr := flag.Int("height", 360, "Высота")
	dropPtr := flag.Int("drop", 0, "Пропускать каждый N-й кадр (проверка пропущенных файлов)")
	audioPtr := flag.String("audio", "", "Аудио для строки audio в шот-листе")

	flag.Parse()

	var depts []string
	for _, d := range strings.Split(*deptPtr, ",") {
		if d = strings.TrimSpace(d); d != "" {
			depts = append(depts, d)
		}
	}
	if len(depts) == 0 || *shotsPtr <= 0 || *framesPtr <= 0 {
		log.Fatalf("[-] Нужен хотя бы один отдел, шот и кадр")
	}

	fmt.Printf("[*] Генерация: %d отделов x %d шотов x %d кадров (%dx%d)\n",
		len(depts), *shotsPtr, *framesPtr, *widthPtr, *heightPtr)

	cat, written, err := writeSequence(layout{
		Dir:         *outPtr,
		Departments: depts,
		Shots:       *shotsPtr,
		Frames:      *framesPtr,
		FirstFrame:  *firstPtr,
		Width:       *widthPtr,
		Height:      *heightPtr,
		DropEvery:   *dropPtr,
		Audio:       *audioPtr,
	})
	if err != nil {
		log.Fatalf("[-] Ошибка генерации: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*listPtr), 0755); err != nil {
		log.Fatalf("[-] %v", err)
	}
	if err := writeShotList(cat, *listPtr); err != nil {
		log.Fatalf("[-] Ошибка записи шот-листа: %v", err)
	}

	fmt.Printf("[+++] Готово: %d кадров в %s, шот-лист %s\n", written, *outPtr, *listPtr)
}

func writeShotList(cat *catalog.Catalog, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return catalog.WriteYAML(cat, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := catalog.WriteCSV(f, cat); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
