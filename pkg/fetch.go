package pkg

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/ulikunitz/xz"
)

func getProgressBar(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		// progress bars leave a mess on CI logs
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

// FetchBinTools downloads and unpacks the prebuilt tools from TOOLS.yml that
// apply to the current platform. Tools whose url#sha256 stamp matches the
// previous run are skipped. The updated stamps are written back to
// TOOLS.stamps.
func FetchBinTools(projectRoot string, cfg ToolsConfig, stamps map[string]string) error {
	client := &http.Client{
		Timeout: time.Minute * 30,
	}
	buf := make([]byte, 4096)

	vars := conditionVars(cfg)

	var firstErr error
	for name, tool := range cfg.Bins {
		if !evalConditions(&tool, vars) {
			continue
		}

		destPath := filepath.Join(projectRoot, tool.Dest)
		destInfo, err := os.Stat(destPath)
		destExists := err == nil

		stampToken := tool.URL + "#" + tool.Sha256
		stamp, ok := stamps[name]
		if ok && stampToken == stamp && destExists {
			continue
		}

		PrintSubtask(name + ":  " + tool.URL)
		if tool.Sha256 == "" {
			firstErr = eris.Errorf("tool %s doesn't have a checksum", name)
			break
		}

		err = fetchOne(client, buf, projectRoot, name, tool, destExists, destInfo)
		if err != nil {
			firstErr = err
			break
		}

		stamps[name] = stampToken
	}

	err := saveStamps(projectRoot, stamps)
	if err != nil {
		PrintError(err.Error())
	}

	return firstErr
}

func fetchOne(client *http.Client, buf []byte, projectRoot, name string, tool BinTool, destExists bool, destInfo os.FileInfo) error {
	arHandle, err := os.CreateTemp("", "starmake-dl-*")
	if err != nil {
		return eris.Wrap(err, "failed to create download file")
	}
	defer func() {
		arHandle.Close()
		os.Remove(arHandle.Name())
	}()

	resp, err := client.Get(tool.URL)
	if err != nil {
		return eris.Wrapf(err, "failed to start download for %s", tool.URL)
	}
	defer resp.Body.Close()

	hash := sha256.New()
	bar := getProgressBar(resp.ContentLength, "     download")
	for {
		n, err := resp.Body.Read(buf)
		if err != nil && n < 1 {
			if err == io.EOF {
				break
			}
			return eris.Wrapf(err, "failed during download of %s", tool.URL)
		}

		_, err = hash.Write(buf[:n])
		if err != nil {
			return eris.Wrapf(err, "failed to calculate checksum for %s", tool.URL)
		}

		_, err = arHandle.Write(buf[:n])
		if err != nil {
			return eris.Wrap(err, "failed to write download to file")
		}

		bar.Write(buf[:n])
	}
	bar.Finish()

	digest := hex.EncodeToString(hash.Sum(nil))
	if digest != tool.Sha256 {
		return eris.Errorf("checksum check failed for %s: got %s, want %s", name, digest, tool.Sha256)
	}

	if destExists {
		destPath := filepath.Join(projectRoot, tool.Dest)
		PrintSubtask("remove " + destPath)
		if destInfo.IsDir() {
			err = os.RemoveAll(destPath)
		} else {
			err = os.Remove(destPath)
		}
		if err != nil {
			return err
		}
	}

	extractor, err := getExtractor(tool.URL)
	if err != nil {
		return err
	}

	_, err = arHandle.Seek(0, io.SeekStart)
	if err != nil {
		return eris.Wrap(err, "failed to rewind download file")
	}

	bar = getProgressBar(resp.ContentLength, "      extract")
	err = extractor(arHandle, bar, projectRoot, tool)
	if err != nil {
		return err
	}

	if runtime.GOOS != "windows" {
		// .zip files don't carry permissions which means we have to manually
		// fix permissions for binaries in .zip files
		for _, binPath := range tool.MarkExec {
			binPath = filepath.Join(projectRoot, tool.Dest, binPath)
			fi, err := os.Stat(binPath)
			if err != nil {
				return eris.Wrapf(err, "failed to read permissions for %s", binPath)
			}

			err = os.Chmod(binPath, fi.Mode()|0o700)
			if err != nil {
				return eris.Wrapf(err, "failed to mark %s as executable", binPath)
			}
		}
	}

	return nil
}

type archiveExtractor func(*os.File, *progressbar.ProgressBar, string, BinTool) error

func openExtractorDest(destPath string, item string, tool BinTool) (*os.File, string, error) {
	// normalize the path and strip tool.Strip elements from the beginning
	pathParts := strings.Split(filepath.Clean(item), string(filepath.Separator))
	if len(pathParts) <= tool.Strip {
		return nil, "/", nil
	}

	relItem := strings.Join(pathParts[tool.Strip:], string(filepath.Separator))
	if !filepath.IsLocal(relItem) {
		return nil, "", eris.Errorf("archive entry %s escapes the destination directory", item)
	}

	dest := filepath.Join(destPath, relItem)
	if dest == destPath {
		return nil, "/", nil
	}

	destParent := filepath.Dir(dest)
	err := os.MkdirAll(destParent, os.FileMode(0o770))
	if err != nil {
		return nil, "", eris.Wrapf(err, "failed to create directory %s", destParent)
	}

	destHandle, err := os.Create(dest)
	if err != nil {
		return nil, "", eris.Wrapf(err, "failed to create file %s", dest)
	}

	return destHandle, dest, nil
}

func getExtractor(url string) (archiveExtractor, error) {
	if strings.HasSuffix(url, ".zip") {
		return extractZip, nil
	}

	if strings.HasSuffix(url, ".tar.gz") {
		return func(f *os.File, bar *progressbar.ProgressBar, projectRoot string, tool BinTool) error {
			reader, err := gzip.NewReader(f)
			if err != nil {
				return err
			}
			defer reader.Close()

			return extractTar(reader, f, bar, projectRoot, tool)
		}, nil
	}

	if strings.HasSuffix(url, ".tar.bz2") {
		return func(f *os.File, bar *progressbar.ProgressBar, projectRoot string, tool BinTool) error {
			return extractTar(bzip2.NewReader(f), f, bar, projectRoot, tool)
		}, nil
	}

	if strings.HasSuffix(url, ".tar.xz") {
		return func(f *os.File, bar *progressbar.ProgressBar, projectRoot string, tool BinTool) error {
			reader, err := xz.NewReader(f)
			if err != nil {
				return err
			}

			return extractTar(reader, f, bar, projectRoot, tool)
		}, nil
	}

	if strings.HasSuffix(url, ".tar.br") {
		return func(f *os.File, bar *progressbar.ProgressBar, projectRoot string, tool BinTool) error {
			return extractTar(brotli.NewReader(f), f, bar, projectRoot, tool)
		}, nil
	}

	return nil, eris.Errorf("archive format of %s not supported", url)
}

func extractZip(f *os.File, bar *progressbar.ProgressBar, projectRoot string, tool BinTool) error {
	stat, err := f.Stat()
	if err != nil {
		return err
	}

	archive, err := zip.NewReader(f, stat.Size())
	if err != nil {
		return err
	}

	buf := make([]byte, 4096)
	destPath := filepath.Join(projectRoot, tool.Dest)
	for _, item := range archive.File {
		if strings.HasSuffix(item.Name, "/") {
			continue
		}
		destHandle, dest, err := openExtractorDest(destPath, item.Name, tool)
		if err != nil {
			return err
		}

		if destHandle == nil {
			continue
		}

		itemHandle, err := item.Open()
		if err != nil {
			destHandle.Close()
			return eris.Wrap(err, "failed to open archive entry")
		}

		for {
			n, err := itemHandle.Read(buf)
			if err != nil && n < 1 {
				if err == io.EOF {
					break
				}
				itemHandle.Close()
				destHandle.Close()
				return eris.Wrapf(err, "failed to read archive entry %s", item.Name)
			}

			_, err = destHandle.Write(buf[:n])
			if err != nil {
				itemHandle.Close()
				destHandle.Close()
				return eris.Wrapf(err, "failed to write extracted file %s", dest)
			}

			pos, err := f.Seek(0, io.SeekCurrent)
			if err == nil {
				bar.Set64(pos)
			}
		}

		itemHandle.Close()
		destHandle.Close()
	}

	return nil
}

func extractTar(r io.Reader, f *os.File, bar *progressbar.ProgressBar, projectRoot string, tool BinTool) error {
	buf := make([]byte, 4096)
	archive := tar.NewReader(r)
	destPath := filepath.Join(projectRoot, tool.Dest)

	for {
		item, err := archive.Next()
		if err != nil {
			if err == io.EOF {
				break
			}

			return eris.Wrap(err, "failed to read archive entry")
		}

		fi := item.FileInfo()
		if fi.IsDir() {
			continue
		}

		destHandle, dest, err := openExtractorDest(destPath, item.Name, tool)
		if err != nil {
			return err
		}

		if destHandle == nil {
			continue
		}

		if item.Typeflag == tar.TypeSymlink {
			destHandle.Close()
			err := os.Remove(dest)
			if err != nil {
				return eris.Wrapf(err, "failed to remove placeholder file %s", dest)
			}

			err = os.Symlink(item.Linkname, dest)
			if err != nil {
				return eris.Wrapf(err, "failed to create symlink %s pointing to %s", dest, item.Linkname)
			}
			continue
		}

		os.Chmod(dest, fi.Mode())

		for {
			n, err := archive.Read(buf)
			if err != nil && n < 1 {
				if err == io.EOF {
					break
				}
				destHandle.Close()
				return eris.Wrapf(err, "failed to read archive entry %s", item.Name)
			}

			_, err = destHandle.Write(buf[:n])
			if err != nil {
				destHandle.Close()
				return eris.Wrapf(err, "failed to write extracted file %s", dest)
			}

			pos, err := f.Seek(0, io.SeekCurrent)
			if err == nil {
				bar.Set64(pos)
			}
		}

		destHandle.Close()
	}

	return nil
}
