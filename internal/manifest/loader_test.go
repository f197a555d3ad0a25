package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/fpang/mission-uploader/internal/mission"
)

const csvManifest = `Mission._id,Mission.name,Mission.tags,Mission.usergroups,Mission.sensors.0.name,Mission.sensors.0.assets,Mission.sensors.1.name,Mission.sensors.1.files
,flight/01,"survey, coast",ops,cam/left,"/data/a.mp4, /data/b.mp4",lidar,/data/c.las
abc123,flight-02,single,"ops,research",cam,/data/d.mp4,,
`

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func names(ms []mission.Mission) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	var nf *FileNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected FileNotFoundError, got %v", err)
	}
}

func TestLoadJSONPreservesOrderAndFields(t *testing.T) {
	data := `[
		{"_id":"","name":"zeta","tags":"a, b"},
		{"_id":"x1","name":"alpha","usergroups":["ops"],"sensors":[{"name":"cam","assets":["/a.mp4"]}]},
		{"name":"mid"}
	]`
	path := writeFile(t, "missions.json", []byte(data))

	got, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"zeta", "alpha", "mid"}, names(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if got[0].ID != "" || got[1].ID != "x1" {
		t.Errorf("unexpected ids %q, %q", got[0].ID, got[1].ID)
	}
	// JSON list members are not split.
	if string(got[0].Fields["tags"]) != `"a, b"` {
		t.Errorf("tags = %s", got[0].Fields["tags"])
	}
	files, err := got[1].Sensors[0].FileList()
	if err != nil {
		t.Fatalf("file list: %v", err)
	}
	if diff := cmp.Diff([]string{"/a.mp4"}, files); diff != "" {
		t.Errorf("assets mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadJSONWritesBackUnchanged(t *testing.T) {
	records := []string{
		`{"name":"m1","tags":"a, b"}`,
		`{"name":"m","tags":[1,2]}`,
		`{"_id":{"$oid":"abc"},"name":"m"}`,
		`{"name":42}`,
		`{"name":"m","sensors":[{"name":"s","assets":[{"path":"a.mp4"}]}]}`,
		`{"_id":"","name":"m","usergroups":"ops, research"}`,
	}
	path := writeFile(t, "missions.json", []byte("["+strings.Join(records, ",")+"]"))

	got, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("expected %d missions, got %d", len(records), len(got))
	}

	for i, rec := range records {
		want := decodeObject(t, []byte(rec))
		if id, ok := want["_id"]; ok && id == "" {
			delete(want, "_id")
		}
		out, err := json.Marshal(got[i])
		if err != nil {
			t.Fatalf("marshal %d: %v", i, err)
		}
		if diff := cmp.Diff(want, decodeObject(t, out)); diff != "" {
			t.Errorf("record %d changed (-want +got):\n%s", i, diff)
		}
	}
}

func decodeObject(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return v
}

func listMember(t *testing.T, f mission.Fields, key string) []string {
	t.Helper()
	var out []string
	if err := json.Unmarshal(f[key], &out); err != nil {
		t.Fatalf("%s = %s: %v", key, f[key], err)
	}
	return out
}

func fileList(t *testing.T, s mission.Sensor) []string {
	t.Helper()
	files, err := s.FileList()
	if err != nil {
		t.Fatalf("file list of %s: %v", s.Name, err)
	}
	return files
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "missions.csv", []byte(csvManifest))

	got, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 missions, got %d", len(got))
	}

	first := got[0]
	if first.ID != "" {
		t.Errorf("empty id should be dropped, got %q", first.ID)
	}
	// Names are sanitized by the uploader, not the loader.
	if first.Name != "flight/01" {
		t.Errorf("name = %q", first.Name)
	}
	if diff := cmp.Diff([]string{"survey", "coast"}, listMember(t, first.Fields, "tags")); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ops"}, listMember(t, first.Fields, "usergroups")); diff != "" {
		t.Errorf("usergroups mismatch (-want +got):\n%s", diff)
	}
	if len(first.Sensors) != 2 {
		t.Fatalf("expected 2 sensors, got %d", len(first.Sensors))
	}
	if diff := cmp.Diff([]string{"/data/a.mp4", "/data/b.mp4"}, fileList(t, first.Sensors[0])); diff != "" {
		t.Errorf("assets mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/data/c.las"}, fileList(t, first.Sensors[1])); diff != "" {
		t.Errorf("legacy files mismatch (-want +got):\n%s", diff)
	}

	second := got[1]
	if second.ID != "abc123" {
		t.Errorf("id = %q", second.ID)
	}
	if diff := cmp.Diff([]string{"single"}, listMember(t, second.Fields, "tags")); diff != "" {
		t.Errorf("single tag mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ops", "research"}, listMember(t, second.Fields, "usergroups")); diff != "" {
		t.Errorf("usergroups mismatch (-want +got):\n%s", diff)
	}
	if len(second.Sensors) != 1 {
		t.Errorf("empty sensor columns should not create a sensor, got %d", len(second.Sensors))
	}
}

func TestLoadCSVBracketColumnsAndExtraFields(t *testing.T) {
	data := "Mission.name,Mission.sensors[0].name,Mission.sensors[0].assets,Mission.location.lat,Other\n" +
		"m1,cam,/x.mp4,51.5,ignored\n"
	path := writeFile(t, "bracket.csv", []byte(data))

	got, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Sensors[0].Name != "cam" {
		t.Fatalf("unexpected missions: %+v", got)
	}
	if string(got[0].Fields["location"]) != `{"lat":"51.5"}` {
		t.Errorf("location = %s", got[0].Fields["location"])
	}
}

func TestLoadUnknownFormat(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("just some text\nwith lines\n"))

	_, err := Load(context.Background(), path)
	var uf *UnknownFormatError
	if !errors.As(err, &uf) {
		t.Fatalf("expected UnknownFormatError, got %v", err)
	}
	if len(uf.Attempts) != 2 || uf.Attempts[0].Format != FormatJSON || uf.Attempts[1].Format != FormatCSV {
		t.Errorf("unexpected attempts: %+v", uf.Attempts)
	}
	if !errors.Is(err, errNoMissionColumns) {
		t.Errorf("expected the CSV reason to be wrapped, got %v", err)
	}
}

func TestLoadJSONObjectIsUnknown(t *testing.T) {
	path := writeFile(t, "obj.json", []byte(`{"name":"m1"}`))
	_, err := Load(context.Background(), path)
	var uf *UnknownFormatError
	if !errors.As(err, &uf) {
		t.Fatalf("expected UnknownFormatError, got %v", err)
	}
}

func TestParseDetectsFormat(t *testing.T) {
	res, err := Parse("m.json", []byte("\xef\xbb\xbf"+`[{"name":"a"}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Format != FormatJSON {
		t.Errorf("expected json, got %s", res.Format)
	}

	res, err = Parse("m.csv", []byte(csvManifest))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Format != FormatCSV {
		t.Errorf("expected csv, got %s", res.Format)
	}
}

func TestLoadCompressed(t *testing.T) {
	data := []byte(`[{"name":"gz"}]`)

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write(data)
	gw.Close()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	zst := enc.EncodeAll([]byte(`[{"name":"zst"}]`), nil)
	enc.Close()

	for file, content := range map[string][]byte{"m.json.gz": gz.Bytes(), "m.json.zst": zst} {
		path := writeFile(t, file, content)
		got, err := Load(context.Background(), path)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", file, err)
		}
		want := strings.TrimPrefix(filepath.Ext(file), ".")
		if len(got) != 1 || got[0].Name != want {
			t.Errorf("%s: unexpected missions %+v", file, got)
		}
	}
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestLoadFromS3(t *testing.T) {
	l := &Loader{S3: &fakeS3{objects: map[string]string{"bucket/batch/missions.csv": csvManifest}}}

	got, err := l.Load(context.Background(), "s3://bucket/batch/missions.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"flight/01", "flight-02"}, names(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	_, err = l.Load(context.Background(), "s3://bucket/missing.json")
	var nf *FileNotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected FileNotFoundError for a missing key, got %v", err)
	}
}
