package media

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const cloudinaryAPI = "https://api.cloudinary.com/v1_1/"

// CloudinaryStore 签名上传/删除；handle 为 public_id
type CloudinaryStore struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	BaseURL   string // 测试时可替换
	Client    *http.Client
	now       func() time.Time
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string, timeout time.Duration) *CloudinaryStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CloudinaryStore{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		BaseURL:   cloudinaryAPI,
		Client:    &http.Client{Timeout: timeout},
		now:       time.Now,
	}
}

// sign 参数按 key 排序后拼接，再追加 secret 做 SHA1
func (c *CloudinaryStore) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + c.APISecret))
	return hex.EncodeToString(sum[:])
}

func (c *CloudinaryStore) endpoint(action string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + c.CloudName + "/image/" + action
}

type cloudinaryResp struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Result    string `json:"result"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *CloudinaryStore) Store(ctx context.Context, u Upload) (Stored, error) {
	if _, err := imageExt(u.Filename); err != nil {
		return Stored{}, err
	}
	publicID := uuid.NewString()
	if c.Folder != "" {
		publicID = c.Folder + "/" + publicID
	}
	params := map[string]string{
		"public_id": publicID,
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	_ = w.WriteField("api_key", c.APIKey)
	_ = w.WriteField("signature", c.sign(params))
	fw, err := w.CreateFormFile("file", u.Filename)
	if err != nil {
		return Stored{}, err
	}
	if _, err := io.Copy(fw, u.Body); err != nil {
		return Stored{}, fmt.Errorf("read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return Stored{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upload"), &body)
	if err != nil {
		return Stored{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	out, err := c.do(req)
	if err != nil {
		return Stored{}, fmt.Errorf("cloudinary upload: %w", err)
	}
	link := out.SecureURL
	if link == "" {
		link = out.URL
	}
	if link == "" {
		return Stored{}, fmt.Errorf("cloudinary upload: empty url")
	}
	if out.PublicID != "" {
		publicID = out.PublicID
	}
	return Stored{URL: link, Handle: publicID}, nil
}

func (c *CloudinaryStore) Delete(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	params := map[string]string{
		"public_id": handle,
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("api_key", c.APIKey)
	form.Set("signature", c.sign(params))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("destroy"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	out, err := c.do(req)
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if out.Result != "" && out.Result != "ok" && out.Result != "not found" {
		return fmt.Errorf("cloudinary destroy: result %q", out.Result)
	}
	return nil
}

func (c *CloudinaryStore) do(req *http.Request) (*cloudinaryResp, error) {
	res, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var out cloudinaryResp
	if len(b) > 0 {
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("decode response (status %d): %w", res.StatusCode, err)
		}
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", res.StatusCode, out.Error.Message)
	}
	if out.Error.Message != "" {
		return nil, errors.New(out.Error.Message)
	}
	return &out, nil
}
