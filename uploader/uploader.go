// Package uploader posts oversized text logs to a pomf-style file host and
// returns the hosted URL. Embed fields cap out at 1024 characters, so
// anything longer goes through here.
package uploader

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

type Client struct {
	uploadURL string
	publicURL string
	token     string
	client    *http.Client
}

type result struct {
	Success     bool   `json:"success"`
	Description string `json:"description"`
	Files       []struct {
		Hash string `json:"hash"`
		Name string `json:"name"`
		URL  string `json:"url"`
		Size int    `json:"size"`
	} `json:"files"`
}

func NewClient(uploadURL, publicURL, token string) *Client {
	return &Client{
		uploadURL: uploadURL,
		publicURL: publicURL,
		token:     token,
		client:    &http.Client{},
	}
}

// Upload posts text as a multipart text file and returns the public link.
func (c *Client) Upload(text string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="files[]"; filename="text.txt"`)
	h.Set("Content-Type", "text/plain;charset=utf-8")

	part, err := writer.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, bytes.NewReader([]byte(text))); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequest("POST", c.uploadURL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", c.token)

	res, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}

	var r result
	if err := json.Unmarshal(resBody, &r); err != nil {
		return "", err
	}

	if !r.Success {
		return "", errors.New(r.Description)
	}
	if len(r.Files) == 0 {
		return "", errors.New("upload returned no files")
	}
	return c.publicURL + r.Files[0].URL, nil
}
