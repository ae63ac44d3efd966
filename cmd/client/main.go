package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"
)

const defaultServerURL = "http://localhost:8080"

type AudioClient struct {
	baseURL string
	http    *http.Client
}

func NewAudioClient(baseURL string) *AudioClient {
	return &AudioClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

type UploadResponse struct {
	AudioID           string `json:"audioId"`
	SuggestedMetadata *struct {
		AudioBitrate int    `json:"audioBitrate"`
		Duration     int64  `json:"duration"`
		Title        string `json:"title"`
		Album        string `json:"album"`
		Performers   string `json:"performers"`
		MimeType     string `json:"mimeType"`
	} `json:"suggestedMetadata"`
}

type MetadataResponse struct {
	AudioID   string    `json:"audioId"`
	Name      string    `json:"name"`
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"createdAt"`
}

// UploadAudio streams a local file to the server as a multipart form.
// The body is piped, so arbitrarily large files never sit in memory.
func (ac *AudioClient) UploadAudio(ctx context.Context, filePath string) (*UploadResponse, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="audioFile"; filename="%s"`, filepath.Base(filePath)))
		hdr.Set("Content-Type", "audio/mpeg")

		part, err := mw.CreatePart(hdr)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ac.baseURL+"/api/audio", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := ac.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// GetMetadata retrieves the record behind an audio id.
func (ac *AudioClient) GetMetadata(ctx context.Context, audioID string) (*MetadataResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ac.baseURL+"/api/audio/"+audioID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := ac.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var out MetadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// UpdateMetadata sets creator and optionally renames the record.
func (ac *AudioClient) UpdateMetadata(ctx context.Context, audioID, name, creator string) error {
	body, err := json.Marshal(map[string]string{"name": name, "creator": creator})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, ac.baseURL+"/api/audio/"+audioID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ac.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// ListAudio lists every stored record.
func (ac *AudioClient) ListAudio(ctx context.Context) ([]MetadataResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ac.baseURL+"/api/audio", nil)
	if err != nil {
		return nil, err
	}
	resp, err := ac.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var out []MetadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// DownloadAudio streams the stored bytes to a local file.
func (ac *AudioClient) DownloadAudio(ctx context.Context, audioID, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ac.baseURL+"/api/audio/stream/"+audioID, nil)
	if err != nil {
		return err
	}
	resp, err := ac.http.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	n, err := io.Copy(outFile, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Printf("Downloaded %d bytes\n", n)
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Code == "" {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return fmt.Errorf("%s: %s", body.Error.Code, body.Error.Message)
}

// Example usage demonstrating all operations
func main() {
	serverURL := defaultServerURL
	if v := os.Getenv("AUDIOKEEP_SERVER_URL"); v != "" {
		serverURL = v
	}
	if len(os.Args) < 2 {
		log.Fatal("usage: client <audio-file.mp3>")
	}

	client := NewAudioClient(serverURL)
	ctx := context.Background()

	// Example 1: Upload an audio file
	fmt.Println("=== Uploading Audio ===")
	uploadResp, err := client.UploadAudio(ctx, os.Args[1])
	if err != nil {
		log.Fatalf("Upload failed: %v", err)
	}
	fmt.Printf("✓ Uploaded (ID: %s)\n", uploadResp.AudioID)
	if m := uploadResp.SuggestedMetadata; m != nil {
		fmt.Printf("  Title: %s, Album: %s, Bitrate: %d kbps\n", m.Title, m.Album, m.AudioBitrate)
	}

	audioID := uploadResp.AudioID

	// Example 2: Set creator metadata
	fmt.Println("\n=== Updating Metadata ===")
	if err := client.UpdateMetadata(ctx, audioID, "", "cli-user"); err != nil {
		log.Printf("Update failed: %v", err)
	} else {
		fmt.Println("✓ Metadata updated")
	}

	// Example 3: Fetch the record back
	fmt.Println("\n=== Getting Metadata ===")
	meta, err := client.GetMetadata(ctx, audioID)
	if err != nil {
		log.Printf("Get metadata failed: %v", err)
	} else {
		fmt.Printf("✓ Name: %s\n", meta.Name)
		fmt.Printf("  Creator: %s\n", meta.Creator)
		fmt.Printf("  Created: %s\n", meta.CreatedAt.Format(time.RFC3339))
	}

	// Example 4: List everything
	fmt.Println("\n=== Listing Audio ===")
	entries, err := client.ListAudio(ctx)
	if err != nil {
		log.Printf("List failed: %v", err)
	} else {
		fmt.Printf("✓ Found %d entries:\n", len(entries))
		for i, e := range entries {
			fmt.Printf("  %d. %s (ID: %s)\n", i+1, e.Name, e.AudioID)
		}
	}

	// Example 5: Download the bytes back
	fmt.Println("\n=== Downloading Audio ===")
	if err := client.DownloadAudio(ctx, audioID, "downloaded.mp3"); err != nil {
		log.Printf("Download failed: %v", err)
	} else {
		fmt.Println("✓ Audio downloaded successfully")
	}
}
