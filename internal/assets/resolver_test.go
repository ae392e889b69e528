package assets

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketup/internal/archive"
	"pocketup/internal/instance"
	"pocketup/internal/remote"
	"pocketup/pkg/corespec"
)

type response struct {
	body string
	err  error
}

// fakeDownloader replays queued responses per url; the last one repeats.
type fakeDownloader struct {
	responses map[string][]response
	calls     map[string]int
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{responses: map[string][]response{}, calls: map[string]int{}}
}

func (f *fakeDownloader) on(url string, rs ...response) {
	f.responses[url] = rs
}

func (f *fakeDownloader) Download(_ context.Context, url string, w io.Writer) error {
	n := f.calls[url]
	f.calls[url] = n + 1
	rs := f.responses[url]
	if len(rs) == 0 {
		return fmt.Errorf("%w: %s", remote.ErrNotFound, url)
	}
	if n >= len(rs) {
		n = len(rs) - 1
	}
	if rs[n].err != nil {
		return rs[n].err
	}
	_, err := io.WriteString(w, rs[n].body)
	return err
}

func (f *fakeDownloader) total() int {
	sum := 0
	for _, n := range f.calls {
		sum += n
	}
	return sum
}

type fakeBuilder struct {
	spec      corespec.InstancePackager
	commonDir string
	calls     int
}

func (b *fakeBuilder) Build(spec corespec.InstancePackager, commonDir string) (instance.Result, error) {
	b.calls++
	b.spec = spec
	b.commonDir = commonDir
	return instance.Result{Written: []string{"x.json"}}, nil
}

func crc(body string) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(body)))
}

func md5hex(body string) string {
	sum := md5.Sum([]byte(body))
	return hex.EncodeToString(sum[:])
}

func writeFile(t *testing.T, fs afero.Fs, name, contents string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, name, []byte(contents), 0o644))
}

func installCore(t *testing.T, fs afero.Fs, id string, platforms []string, data string) {
	t.Helper()
	ids := ""
	for i, p := range platforms {
		if i > 0 {
			ids += ","
		}
		ids += fmt.Sprintf("%q", p)
	}
	writeFile(t, fs, filepath.Join("Cores", id, "core.json"),
		fmt.Sprintf(`{"core":{"metadata":{"version":"1.0","platform_ids":[%s]}}}`, ids))
	writeFile(t, fs, filepath.Join("Cores", id, "data.json"), data)
}

const nesData = `{"data":{"magic":"APF_VER_1","data_slots":[
	{"id":1,"name":"ROM","filename":null,"parameters":"0x1"},
	{"id":2,"name":"BIOS","filename":"bios.bin","alternate_filenames":["bios-alt.bin","banned.bin"],"parameters":"0x0"},
	{"id":3,"name":"Save","filename":"game.sav"},
	{"id":4,"name":"Palette","filename":"palette.pal","parameters":"0x2"},
	{"id":5,"name":"Banned","filename":"banned.bin"},
	{"id":6,"name":"Second","filename":"second.rom","parameters":"0x1000000"}
]}}`

func newNES(t *testing.T) (afero.Fs, *corespec.Core) {
	fs := afero.NewMemMapFs()
	installCore(t, fs, "agg23.NES", []string{"nes", "famicom"}, nesData)
	return fs, &corespec.Core{Identifier: "agg23.NES", PlatformID: "nes"}
}

func testIndex() *archive.Index {
	return archive.New("openFPGA-Files", "", []archive.File{
		{Name: "bios.bin", CRC32: crc("bios")},
		{Name: "palette.pal", CRC32: crc("palette")},
		{Name: "second.rom", CRC32: crc("second")},
		{Name: "sf2.rom", CRC32: crc("sf2")},
	})
}

func newResolver(fs afero.Fs, dl Downloader, b Builder, opts Options) *Resolver {
	return New(fs, testIndex(), []string{"banned.bin"}, dl, b, opts, zerolog.Nop())
}

func TestResolvePlacesSlotsAndSkipsExcludedNames(t *testing.T) {
	fs, core := newNES(t)
	idx := testIndex()
	dl := newFakeDownloader()
	dl.on(idx.URL("bios.bin"), response{body: "bios"})
	dl.on(idx.URL("bios-alt.bin"), response{body: "alt"})
	dl.on(idx.URL("palette.pal"), response{body: "palette"})
	dl.on(idx.URL("second.rom"), response{body: "second"})

	res, err := newResolver(fs, dl, nil, Options{VerifyChecksums: true}).Resolve(context.Background(), core)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join("Assets", "nes", "common", "bios.bin"),
		filepath.Join("Assets", "nes", "common", "bios-alt.bin"),
		filepath.Join("Assets", "nes", "agg23.NES", "palette.pal"),
		filepath.Join("Assets", "famicom", "common", "second.rom"),
	}, res.Installed)
	assert.Empty(t, res.Skipped)
	assert.False(t, res.MissingBetaKey)

	assert.Zero(t, dl.calls[idx.URL("banned.bin")])
	assert.Zero(t, dl.calls[idx.URL("game.sav")])
}

func TestResolveSkipsVerifiedFilesWithoutNetwork(t *testing.T) {
	fs, core := newNES(t)
	writeFile(t, fs, "Assets/nes/common/bios.bin", "bios")
	// No reference checksum, so any content passes.
	writeFile(t, fs, "Assets/nes/common/bios-alt.bin", "anything")
	writeFile(t, fs, "Assets/nes/agg23.NES/palette.pal", "palette")
	writeFile(t, fs, "Assets/famicom/common/second.rom", "second")

	dl := newFakeDownloader()
	res, err := newResolver(fs, dl, nil, Options{VerifyChecksums: true}).Resolve(context.Background(), core)
	require.NoError(t, err)
	assert.Empty(t, res.Installed)
	assert.Empty(t, res.Skipped)
	assert.Zero(t, dl.total())
}

func TestFetchBoundedUnderPermanentMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	idx := testIndex()
	dl := newFakeDownloader()
	dl.on(idx.URL("bios.bin"), response{body: "corrupt"})

	r := newResolver(fs, dl, nil, Options{VerifyChecksums: true})
	got := r.fetch(context.Background(), zerolog.Nop(), "Assets/nes/common/bios.bin", "bios.bin")

	assert.Equal(t, skipped, got)
	assert.Equal(t, MaxAttempts, dl.calls[idx.URL("bios.bin")])
	exists, err := afero.Exists(fs, "Assets/nes/common/bios.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFetchStopsOnNotFound(t *testing.T) {
	fs := afero.NewMemMapFs()
	idx := testIndex()
	dl := newFakeDownloader()

	r := newResolver(fs, dl, nil, Options{VerifyChecksums: true})
	got := r.fetch(context.Background(), zerolog.Nop(), "Assets/nes/common/bios.bin", "bios.bin")

	assert.Equal(t, skipped, got)
	assert.Equal(t, 1, dl.calls[idx.URL("bios.bin")])
}

func TestFetchRetriesTransportErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	idx := testIndex()
	dl := newFakeDownloader()
	failure := fmt.Errorf("%w: timeout", remote.ErrTransport)
	dl.on(idx.URL("bios.bin"), response{err: failure}, response{err: failure}, response{body: "bios"})

	r := newResolver(fs, dl, nil, Options{VerifyChecksums: true})
	got := r.fetch(context.Background(), zerolog.Nop(), "Assets/nes/common/bios.bin", "bios.bin")

	assert.Equal(t, downloaded, got)
	assert.Equal(t, 3, dl.calls[idx.URL("bios.bin")])
	contents, err := afero.ReadFile(fs, "Assets/nes/common/bios.bin")
	require.NoError(t, err)
	assert.Equal(t, "bios", string(contents))

	// Temp files are cleaned up.
	entries, err := afero.ReadDir(fs, "Assets/nes/common")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFetchKeepsExistingFileWhenTransfersFail(t *testing.T) {
	fs := afero.NewMemMapFs()
	idx := testIndex()
	writeFile(t, fs, "Assets/nes/common/bios.bin", "user copy")
	dl := newFakeDownloader()
	dl.on(idx.URL("bios.bin"), response{err: fmt.Errorf("%w: timeout", remote.ErrTransport)})

	r := newResolver(fs, dl, nil, Options{VerifyChecksums: true})
	got := r.fetch(context.Background(), zerolog.Nop(), "Assets/nes/common/bios.bin", "bios.bin")

	assert.Equal(t, skipped, got)
	assert.Equal(t, MaxAttempts, dl.calls[idx.URL("bios.bin")])
	contents, err := afero.ReadFile(fs, "Assets/nes/common/bios.bin")
	require.NoError(t, err)
	assert.Equal(t, "user copy", string(contents))
}

func TestFetchKeepsExistingFileWhenCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	idx := testIndex()
	writeFile(t, fs, "Assets/nes/common/bios.bin", "user copy")
	dl := newFakeDownloader()
	dl.on(idx.URL("bios.bin"), response{body: "bios"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newResolver(fs, dl, nil, Options{VerifyChecksums: true})
	got := r.fetch(ctx, zerolog.Nop(), "Assets/nes/common/bios.bin", "bios.bin")

	assert.Equal(t, skipped, got)
	assert.Zero(t, dl.total())
	exists, err := afero.Exists(fs, "Assets/nes/common/bios.bin")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFetchWithVerificationDisabledAcceptsAnyContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	idx := testIndex()
	dl := newFakeDownloader()
	dl.on(idx.URL("bios.bin"), response{body: "corrupt"})

	r := newResolver(fs, dl, nil, Options{VerifyChecksums: false})
	got := r.fetch(context.Background(), zerolog.Nop(), "Assets/nes/common/bios.bin", "bios.bin")
	assert.Equal(t, downloaded, got)
	assert.Equal(t, 1, dl.calls[idx.URL("bios.bin")])
}

func TestExcludedCoreReturnsImmediately(t *testing.T) {
	dl := newFakeDownloader()
	res, err := newResolver(afero.NewMemMapFs(), dl, nil, Options{}).
		Resolve(context.Background(), &corespec.Core{Identifier: "Mazamars312.NeoGeo"})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Zero(t, dl.total())
}

func TestResolveNotInstalled(t *testing.T) {
	_, err := newResolver(afero.NewMemMapFs(), newFakeDownloader(), nil, Options{}).
		Resolve(context.Background(), &corespec.Core{Identifier: "agg23.SNES"})
	assert.ErrorIs(t, err, ErrNotInstalled)
}

func TestPackagerReplacesSlotResolution(t *testing.T) {
	fs := afero.NewMemMapFs()
	installCore(t, fs, "spiritualized.PSX", []string{"psx"}, `{"data":{"data_slots":[{"id":1,"filename":"bios.bin"}]}}`)
	writeFile(t, fs, "Cores/spiritualized.PSX/instance-packager.json",
		`{"platform_id":"psx","output":"Assets/psx/common","data_slots":[{"id":100,"filename":"*.cue","required":true}]}`)

	b := &fakeBuilder{}
	dl := newFakeDownloader()
	res, err := newResolver(fs, dl, b, Options{BuildInstances: true}).
		Resolve(context.Background(), &corespec.Core{Identifier: "spiritualized.PSX", PlatformID: "psx"})
	require.NoError(t, err)

	assert.Equal(t, 1, b.calls)
	assert.Equal(t, filepath.Join("Assets", "psx", "common"), b.commonDir)
	assert.Equal(t, "psx", b.spec.PlatformID)
	assert.Equal(t, Result{}, res)
	assert.Zero(t, dl.total())
}

func TestBetaKeyMismatchFlagsCoreAndResolvesSiblings(t *testing.T) {
	fs := afero.NewMemMapFs()
	installCore(t, fs, "jotego.jtcps1", []string{"jtcps1"}, fmt.Sprintf(`{"data":{"data_slots":[
		{"id":17,"name":"Key","filename":"beta.bin","parameters":"0x2","md5":%q},
		{"id":1,"name":"ROM","filename":null,"parameters":"0x2"}
	]}}`, md5hex("the real key")))
	writeFile(t, fs, "beta.bin", "a stale key")
	writeFile(t, fs, "Assets/jtcps1/jotego.jtcps1/sf2.json",
		`{"instance":{"magic":"APF_VER_1","data_path":"","data_slots":[{"id":17,"filename":"beta.bin"},{"id":1,"filename":"sf2.rom"}]}}`)
	writeFile(t, fs, "Assets/jtcps1/jotego.jtcps1/._sf2.json", "not json")

	idx := testIndex()
	dl := newFakeDownloader()
	dl.on(idx.URL("sf2.rom"), response{body: "sf2"})

	core := &corespec.Core{Identifier: "jotego.jtcps1", PlatformID: "jtcps1", RequiresLicense: true}
	r := newResolver(fs, dl, nil, Options{
		VerifyChecksums: true,
		LicenseSlotFile: "beta.bin",
		LicenseKeyPath:  "beta.bin",
	})
	res, err := r.Resolve(context.Background(), core)
	require.NoError(t, err)

	assert.Equal(t, corespec.SlotID("17"), core.BetaSlotID)
	assert.True(t, res.MissingBetaKey)
	assert.Equal(t, []string{filepath.Join("Assets", "jtcps1", "jotego.jtcps1", "sf2.rom")}, res.Installed)
	assert.Zero(t, dl.calls[idx.URL("beta.bin")])

	key, err := afero.ReadFile(fs, "Assets/jtcps1/jotego.jtcps1/beta.bin")
	require.NoError(t, err)
	assert.Equal(t, "a stale key", string(key))
}

func TestBetaKeyMatchDoesNotFlag(t *testing.T) {
	fs := afero.NewMemMapFs()
	installCore(t, fs, "jotego.jtcps1", []string{"jtcps1"}, fmt.Sprintf(`{"data":{"data_slots":[
		{"id":17,"filename":"beta.bin","parameters":"0x2","md5":%q}
	]}}`, md5hex("the real key")))
	writeFile(t, fs, "beta.bin", "the real key")
	writeFile(t, fs, "Assets/jtcps1/jotego.jtcps1/sf2.json",
		`{"instance":{"magic":"APF_VER_1","data_path":"","data_slots":[{"id":17,"filename":"beta.bin"}]}}`)

	core := &corespec.Core{Identifier: "jotego.jtcps1", PlatformID: "jtcps1", RequiresLicense: true}
	r := newResolver(fs, newFakeDownloader(), nil, Options{LicenseSlotFile: "beta.bin", LicenseKeyPath: "beta.bin"})
	res, err := r.Resolve(context.Background(), core)
	require.NoError(t, err)
	assert.False(t, res.MissingBetaKey)
}

func TestBetaKeyInPlaceIsNotReplaced(t *testing.T) {
	fs := afero.NewMemMapFs()
	installCore(t, fs, "jotego.jtcps1", []string{"jtcps1"}, fmt.Sprintf(`{"data":{"data_slots":[
		{"id":17,"filename":"beta.bin","parameters":"0x2","md5":%q}
	]}}`, md5hex("the real key")))
	writeFile(t, fs, "beta.bin", "a stale key")
	writeFile(t, fs, "Assets/jtcps1/jotego.jtcps1/beta.bin", "the real key")
	writeFile(t, fs, "Assets/jtcps1/jotego.jtcps1/sf2.json",
		`{"instance":{"magic":"APF_VER_1","data_path":"","data_slots":[{"id":17,"filename":"beta.bin"}]}}`)

	core := &corespec.Core{Identifier: "jotego.jtcps1", PlatformID: "jtcps1", RequiresLicense: true}
	r := newResolver(fs, newFakeDownloader(), nil, Options{LicenseSlotFile: "beta.bin", LicenseKeyPath: "beta.bin"})
	res, err := r.Resolve(context.Background(), core)
	require.NoError(t, err)
	assert.False(t, res.MissingBetaKey)

	key, err := afero.ReadFile(fs, "Assets/jtcps1/jotego.jtcps1/beta.bin")
	require.NoError(t, err)
	assert.Equal(t, "the real key", string(key))
}

func TestInvalidParametersFailTheCore(t *testing.T) {
	fs := afero.NewMemMapFs()
	installCore(t, fs, "a.b", []string{"x"}, `{"data":{"data_slots":[{"id":1,"filename":"f.bin","parameters":"zz"}]}}`)

	_, err := newResolver(fs, newFakeDownloader(), nil, Options{}).
		Resolve(context.Background(), &corespec.Core{Identifier: "a.b", PlatformID: "x"})
	assert.ErrorIs(t, err, corespec.ErrInvalidParameters)
}

func TestUpdatersOverrideLicenseFilename(t *testing.T) {
	fs := afero.NewMemMapFs()
	installCore(t, fs, "jotego.jtkiwi", []string{"jtkiwi"}, `{"data":{"data_slots":[
		{"id":9,"filename":"jtbeta.bin","parameters":"0x2"}
	]}}`)
	writeFile(t, fs, "Cores/jotego.jtkiwi/updaters.json", `{"license":{"filename":"jtbeta.bin"}}`)

	core := &corespec.Core{Identifier: "jotego.jtkiwi", PlatformID: "jtkiwi", RequiresLicense: true}
	dl := newFakeDownloader()
	res, err := newResolver(fs, dl, nil, Options{LicenseSlotFile: "beta.bin", LicenseKeyPath: "beta.bin"}).
		Resolve(context.Background(), core)
	require.NoError(t, err)

	assert.Equal(t, corespec.SlotID("9"), core.BetaSlotID)
	assert.True(t, res.MissingBetaKey, "no key is held")
	assert.Zero(t, dl.total())
}
