// Package archive упаковывает папку сохранений в единый zip-архив и
// распаковывает его обратно. Формат архива непрозрачен для ядра
// синхронизации: оно работает с готовым бинарным блобом.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Payload представляет упакованное сохранение.
type Payload struct {
	Data []byte
	// FileModifiedAt — самое позднее время изменения файла внутри архива.
	FileModifiedAt time.Time
}

// Pack сжимает содержимое папки сохранений в zip-архив.
// Пути внутри архива хранятся относительно srcDir.
func Pack(srcDir string) (*Payload, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return nil, fmt.Errorf("папка сохранений недоступна: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("путь '%s' не является папкой", srcDir)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	var newest time.Time

	err = filepath.WalkDir(srcDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, relErr := filepath.Rel(srcDir, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		// Внутри zip всегда прямые слэши, независимо от платформы.
		name := filepath.ToSlash(rel)

		if entry.IsDir() {
			_, dirErr := zw.Create(name + "/")
			return dirErr
		}

		fileInfo, infoErr := entry.Info()
		if infoErr != nil {
			return infoErr
		}
		if fileInfo.ModTime().After(newest) {
			newest = fileInfo.ModTime()
		}

		w, createErr := zw.Create(name)
		if createErr != nil {
			return createErr
		}
		f, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}
		defer f.Close()

		_, copyErr := io.Copy(w, f)
		return copyErr
	})
	if err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("ошибка упаковки папки сохранений: %w", err)
	}

	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("ошибка завершения архива: %w", err)
	}

	if newest.IsZero() {
		newest = time.Now()
	}
	return &Payload{Data: buf.Bytes(), FileModifiedAt: newest}, nil
}

// Unpack распаковывает архив в папку сохранений, перезаписывая существующие
// файлы. Операция разрушающая: подтверждение пользователя — ответственность
// вызывающей стороны.
func Unpack(data []byte, targetDir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("ошибка чтения архива: %w", err)
	}

	if err = os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("ошибка создания папки сохранений: %w", err)
	}

	for _, file := range zr.File {
		if err = extractFile(file, targetDir); err != nil {
			return err
		}
	}
	return nil
}

// extractFile записывает один элемент архива в целевую папку.
func extractFile(file *zip.File, targetDir string) error {
	// Защита от выхода за пределы целевой папки (zip slip).
	outPath := filepath.Join(targetDir, filepath.FromSlash(file.Name))
	if !strings.HasPrefix(outPath, filepath.Clean(targetDir)+string(os.PathSeparator)) {
		return fmt.Errorf("недопустимый путь в архиве: '%s'", file.Name)
	}

	if file.FileInfo().IsDir() {
		if err := os.MkdirAll(outPath, 0o755); err != nil {
			return fmt.Errorf("ошибка создания папки '%s': %w", file.Name, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ошибка создания папки для '%s': %w", file.Name, err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("ошибка чтения '%s' из архива: %w", file.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, file.Mode())
	if err != nil {
		return fmt.Errorf("ошибка создания файла '%s': %w", file.Name, err)
	}
	defer dst.Close()

	if _, err = io.Copy(dst, src); err != nil {
		return fmt.Errorf("ошибка записи файла '%s': %w", file.Name, err)
	}
	return nil
}
