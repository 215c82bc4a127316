package s3xml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/s3keeper/pkg/provider"
)

const listBody = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>logs</Name>
  <Prefix>app/</Prefix>
  <Delimiter>/</Delimiter>
  <KeyCount>3</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>true</IsTruncated>
  <NextContinuationToken>1ueGcxLPRx1Tr</NextContinuationToken>
  <Contents>
    <Key>app/a.log</Key>
    <LastModified>2024-02-03T04:05:06.789Z</LastModified>
    <ETag>"9b2cf535f27731c974343645a3985328"</ETag>
    <Size>434234</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
  <Contents>
    <Key>app/b.log</Key>
    <LastModified>2024-02-03T04:05:06Z</LastModified>
    <Size>0</Size>
  </Contents>
  <CommonPrefixes><Prefix>app/2023/</Prefix></CommonPrefixes>
</ListBucketResult>`

func TestDecodeListBucketResult(t *testing.T) {
	page, err := DecodeListBucketResult([]byte(listBody))
	require.NoError(t, err)

	assert.Equal(t, "app/", page.Prefix)
	assert.Equal(t, "/", page.Delimiter)
	assert.True(t, page.HasMore())
	assert.Equal(t, "1ueGcxLPRx1Tr", page.NextContinuationToken)

	require.Len(t, page.Entries, 2)
	a := page.Entries[0]
	assert.Equal(t, "app/a.log", a.Key)
	assert.Equal(t, "a.log", a.Name())
	assert.Equal(t, "9b2cf535f27731c974343645a3985328", a.ETag)
	assert.Equal(t, int64(434234), a.Size)
	assert.Equal(t, "STANDARD", a.StorageClass)
	assert.True(t, a.LastModified.Equal(time.Date(2024, 2, 3, 4, 5, 6, 789_000_000, time.UTC)))

	b := page.Entries[1]
	assert.True(t, b.LastModified.Equal(time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)), "dates without fractional seconds decode")
	assert.Empty(t, b.ETag)

	require.Len(t, page.Folders, 1)
	assert.Equal(t, "app/2023/", page.Folders[0].Prefix)
	assert.Equal(t, "2023", page.Folders[0].Name())
}

func TestDecodeListBucketResult_TokenPairing(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantMore bool
	}{
		{
			name:     "truncated with token",
			body:     `<ListBucketResult><IsTruncated>true</IsTruncated><NextContinuationToken>t</NextContinuationToken></ListBucketResult>`,
			wantMore: true,
		},
		{
			name: "truncated without token",
			body: `<ListBucketResult><IsTruncated>true</IsTruncated></ListBucketResult>`,
		},
		{
			name: "token without truncation",
			body: `<ListBucketResult><IsTruncated>false</IsTruncated><NextContinuationToken>t</NextContinuationToken></ListBucketResult>`,
		},
		{
			name: "no truncation element",
			body: `<ListBucketResult></ListBucketResult>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := DecodeListBucketResult([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantMore, page.HasMore())
			assert.Equal(t, tt.wantMore, page.NextContinuationToken != "")
			assert.Empty(t, page.Entries)
		})
	}
}

func TestListBucketResult_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 123_000_000, time.UTC)
	in := &provider.PageResult{
		Prefix:                "p/",
		Delimiter:             "/",
		IsTruncated:           true,
		NextContinuationToken: "next",
		Entries: []provider.ObjectEntry{
			{Key: "p/x", ETag: "e1", LastModified: ts, Size: 7, StorageClass: "STANDARD"},
		},
		Folders: []provider.FolderPrefix{{Prefix: "p/sub/", Delimiter: "/"}},
	}

	body, err := EncodeListBucketResult("bucket", in)
	require.NoError(t, err)
	assert.Contains(t, string(body), `xmlns="`+Namespace+`"`)

	out, err := DecodeListBucketResult(body)
	require.NoError(t, err)
	assert.True(t, out.HasMore())
	assert.Equal(t, "next", out.NextContinuationToken)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, "p/x", out.Entries[0].Key)
	assert.Equal(t, "e1", out.Entries[0].ETag)
	assert.Equal(t, int64(7), out.Entries[0].Size)
	assert.True(t, ts.Equal(out.Entries[0].LastModified))
	assert.Equal(t, in.Folders, out.Folders)

	last := &provider.PageResult{Prefix: "p/", NextContinuationToken: "stale"}
	body, err = EncodeListBucketResult("bucket", last)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "stale")

	out, err = DecodeListBucketResult(body)
	require.NoError(t, err)
	assert.False(t, out.HasMore())
}

func TestDecodeListBucketResult_InvalidNodes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			name:      "missing key",
			body:      `<ListBucketResult><Contents><LastModified>2024-01-01T00:00:00Z</LastModified><Size>1</Size></Contents></ListBucketResult>`,
			wantField: "Contents.Key",
		},
		{
			name:      "bad date",
			body:      `<ListBucketResult><Contents><Key>k</Key><LastModified>yesterday</LastModified><Size>1</Size></Contents></ListBucketResult>`,
			wantField: "Contents.LastModified",
		},
		{
			name:      "non-numeric size",
			body:      `<ListBucketResult><Contents><Key>k</Key><LastModified>2024-01-01T00:00:00Z</LastModified><Size>big</Size></Contents></ListBucketResult>`,
			wantField: "Contents.Size",
		},
		{
			name:      "bad truncation flag",
			body:      `<ListBucketResult><IsTruncated>maybe</IsTruncated></ListBucketResult>`,
			wantField: "ListBucketResult.IsTruncated",
		},
		{
			name:      "folder without prefix",
			body:      `<ListBucketResult><CommonPrefixes></CommonPrefixes></ListBucketResult>`,
			wantField: "CommonPrefixes.Prefix",
		},
		{
			name:      "wrong root",
			body:      `<ListVersionsResult></ListVersionsResult>`,
			wantField: "ListBucketResult",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeListBucketResult([]byte(tt.body))
			require.Error(t, err)

			var nodeErr *InvalidNodeError
			require.ErrorAs(t, err, &nodeErr)
			assert.Equal(t, tt.wantField, nodeErr.Field)
		})
	}
}

func TestDecodeListBucketResult_URLEncoded(t *testing.T) {
	body := `<ListBucketResult>
  <Prefix>logs%2F</Prefix>
  <Delimiter>%2F</Delimiter>
  <EncodingType>url</EncodingType>
  <IsTruncated>true</IsTruncated>
  <NextContinuationToken>a+b/c=</NextContinuationToken>
  <Contents><Key>logs/a%01b.txt</Key><LastModified>2024-01-01T00:00:00Z</LastModified><Size>1</Size></Contents>
  <Contents><Key>logs/one%2Btwo+three.txt</Key><LastModified>2024-01-01T00:00:00Z</LastModified><Size>2</Size></Contents>
  <CommonPrefixes><Prefix>logs/sub%20dir/</Prefix></CommonPrefixes>
</ListBucketResult>`

	page, err := DecodeListBucketResult([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "logs/", page.Prefix)
	assert.Equal(t, "/", page.Delimiter)
	assert.Equal(t, "a+b/c=", page.NextContinuationToken, "tokens are opaque and never decoded")
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "logs/a\x01b.txt", page.Entries[0].Key)
	assert.Equal(t, "logs/one+two three.txt", page.Entries[1].Key)
	require.Len(t, page.Folders, 1)
	assert.Equal(t, "logs/sub dir/", page.Folders[0].Prefix)
}

func TestDecodeListBucketResult_PlainKeysNotDecoded(t *testing.T) {
	body := `<ListBucketResult><Contents><Key>100%25+done</Key><LastModified>2024-01-01T00:00:00Z</LastModified><Size>1</Size></Contents></ListBucketResult>`

	page, err := DecodeListBucketResult([]byte(body))
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "100%25+done", page.Entries[0].Key)
}

func TestDecodeListBucketResult_BadURLEncoding(t *testing.T) {
	body := `<ListBucketResult><EncodingType>url</EncodingType><Contents><Key>bad%zz</Key><LastModified>2024-01-01T00:00:00Z</LastModified><Size>1</Size></Contents></ListBucketResult>`

	_, err := DecodeListBucketResult([]byte(body))
	var nodeErr *InvalidNodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "Contents.Key", nodeErr.Field)
}

func TestDecodeListVersionsResult_URLEncoded(t *testing.T) {
	body := `<ListVersionsResult>
  <Prefix>tv%2F</Prefix>
  <EncodingType>url</EncodingType>
  <IsTruncated>true</IsTruncated>
  <NextKeyMarker>tv/ep%0A1.mkv</NextKeyMarker>
  <NextVersionIdMarker>v1</NextVersionIdMarker>
  <Version><Key>tv/ep%0A1.mkv</Key><VersionId>v1</VersionId><IsLatest>true</IsLatest><LastModified>2024-01-01T00:00:00Z</LastModified><Size>3</Size></Version>
  <DeleteMarker><Key>tv/gone%20now.mkv</Key><VersionId>m1</VersionId><IsLatest>true</IsLatest></DeleteMarker>
</ListVersionsResult>`

	page, err := DecodeListVersionsResult([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "tv/", page.Prefix)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "tv/ep\n1.mkv", page.Items[0].Key())
	assert.Equal(t, "tv/gone now.mkv", page.Items[1].Key())

	require.True(t, page.HasMore())
	assert.Equal(t, "tv/ep\n1.mkv", page.NextMarker.KeyMarker)
	assert.Equal(t, "v1", page.NextMarker.VersionIDMarker)
}

func TestInvalidNodeError_CarriesNode(t *testing.T) {
	_, err := DecodeListBucketResult([]byte(`<ListBucketResult><Contents><Key>k</Key><LastModified>2024-01-01T00:00:00Z</LastModified><Size>x1</Size></Contents></ListBucketResult>`))

	var nodeErr *InvalidNodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Contains(t, nodeErr.Node, "<Size>x1</Size>")
	assert.Contains(t, err.Error(), "Contents.Size")
	assert.Contains(t, err.Error(), `"x1"`)
}

const versionsBody = `<?xml version="1.0" encoding="UTF-8"?>
<ListVersionsResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>bucket</Name>
  <Prefix></Prefix>
  <KeyMarker></KeyMarker>
  <VersionIdMarker></VersionIdMarker>
  <NextKeyMarker>b.txt</NextKeyMarker>
  <NextVersionIdMarker>v3</NextVersionIdMarker>
  <MaxKeys>250</MaxKeys>
  <IsTruncated>true</IsTruncated>
  <DeleteMarker>
    <Key>a.txt</Key>
    <VersionId>v2</VersionId>
    <IsLatest>true</IsLatest>
    <LastModified>2024-01-02T00:00:00.000Z</LastModified>
    <Owner><ID>owner-1</ID><DisplayName>ops</DisplayName></Owner>
  </DeleteMarker>
  <Version>
    <Key>a.txt</Key>
    <VersionId>v1</VersionId>
    <IsLatest>false</IsLatest>
    <LastModified>2024-01-01T00:00:00.000Z</LastModified>
    <ETag>"aa"</ETag>
    <Size>10</Size>
    <StorageClass>STANDARD</StorageClass>
  </Version>
  <DeleteMarker>
    <Key>b.txt</Key>
  </DeleteMarker>
  <Version>
    <Key>b.txt</Key>
    <VersionId>v3</VersionId>
    <IsLatest>false</IsLatest>
    <LastModified>2024-01-01T00:00:00Z</LastModified>
    <Size>20</Size>
  </Version>
</ListVersionsResult>`

func TestDecodeListVersionsResult_PreservesOrder(t *testing.T) {
	page, err := DecodeListVersionsResult([]byte(versionsBody))
	require.NoError(t, err)

	require.Len(t, page.Items, 4)
	assert.True(t, page.Items[0].IsDeleteMarker())
	assert.False(t, page.Items[1].IsDeleteMarker())
	assert.True(t, page.Items[2].IsDeleteMarker())
	assert.False(t, page.Items[3].IsDeleteMarker())

	dm := page.Items[0].DeleteMarker
	assert.Equal(t, "v2", dm.VersionID)
	require.NotNil(t, dm.IsLatest)
	assert.True(t, *dm.IsLatest)
	require.NotNil(t, dm.Owner)
	assert.Equal(t, "owner-1", dm.Owner.ID)

	bare := page.Items[2].DeleteMarker
	assert.Equal(t, "b.txt", bare.Key)
	assert.Nil(t, bare.IsLatest)
	assert.Nil(t, bare.LastModified)
	assert.Nil(t, bare.Owner)

	v := page.Items[1].Version
	assert.Equal(t, "aa", v.ETag)
	assert.Equal(t, int64(10), v.Size)
	require.NotNil(t, v.Version)
	assert.Equal(t, "v1", v.Version.VersionID)
	assert.False(t, v.Version.IsLatest)

	assert.Len(t, page.Versions(), 2)
	assert.Len(t, page.DeleteMarkers(), 2)

	require.NotNil(t, page.NextMarker)
	assert.Equal(t, "b.txt", page.NextMarker.KeyMarker)
	assert.Equal(t, "v3", page.NextMarker.VersionIDMarker)
}

func TestDecodeListVersionsResult_MarkerPairing(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantMore bool
	}{
		{
			name:     "both markers",
			body:     `<ListVersionsResult><IsTruncated>true</IsTruncated><NextKeyMarker>k</NextKeyMarker><NextVersionIdMarker>v</NextVersionIdMarker></ListVersionsResult>`,
			wantMore: true,
		},
		{
			name: "key marker only",
			body: `<ListVersionsResult><IsTruncated>true</IsTruncated><NextKeyMarker>k</NextKeyMarker></ListVersionsResult>`,
		},
		{
			name: "version marker only",
			body: `<ListVersionsResult><IsTruncated>true</IsTruncated><NextVersionIdMarker>v</NextVersionIdMarker></ListVersionsResult>`,
		},
		{
			name: "markers on a complete page",
			body: `<ListVersionsResult><IsTruncated>false</IsTruncated><NextKeyMarker>k</NextKeyMarker><NextVersionIdMarker>v</NextVersionIdMarker></ListVersionsResult>`,
		},
		{
			name:     "markers without truncation flag",
			body:     `<ListVersionsResult><NextKeyMarker>k</NextKeyMarker><NextVersionIdMarker>v</NextVersionIdMarker></ListVersionsResult>`,
			wantMore: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := DecodeListVersionsResult([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantMore, page.HasMore())
		})
	}
}

func TestDecodeListVersionsResult_InvalidNodes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			name:      "version without id",
			body:      `<ListVersionsResult><Version><Key>k</Key><IsLatest>true</IsLatest><LastModified>2024-01-01T00:00:00Z</LastModified><Size>1</Size></Version></ListVersionsResult>`,
			wantField: "Version.VersionId",
		},
		{
			name:      "delete marker without key",
			body:      `<ListVersionsResult><DeleteMarker><VersionId>v</VersionId></DeleteMarker></ListVersionsResult>`,
			wantField: "DeleteMarker.Key",
		},
		{
			name:      "delete marker bad date",
			body:      `<ListVersionsResult><DeleteMarker><Key>k</Key><LastModified>01/01/2024</LastModified></DeleteMarker></ListVersionsResult>`,
			wantField: "DeleteMarker.LastModified",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeListVersionsResult([]byte(tt.body))
			var nodeErr *InvalidNodeError
			require.ErrorAs(t, err, &nodeErr)
			assert.Equal(t, tt.wantField, nodeErr.Field)
		})
	}
}

func TestListVersionsResult_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	latest := true
	in := &provider.VersionPageResult{
		Items: []provider.VersionItem{
			{DeleteMarker: &provider.DeleteMarker{Key: "a", VersionID: "m1", IsLatest: &latest, LastModified: &ts}},
			{Version: &provider.ObjectEntry{Key: "a", LastModified: ts, Size: 3, Version: &provider.VersionInfo{VersionID: "v1"}}},
		},
		NextMarker: &provider.VersionMarker{KeyMarker: "a", VersionIDMarker: "v1"},
	}

	body, err := EncodeListVersionsResult("bucket", in)
	require.NoError(t, err)

	out, err := DecodeListVersionsResult(body)
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.True(t, out.Items[0].IsDeleteMarker())
	assert.Equal(t, "m1", out.Items[0].DeleteMarker.VersionID)
	assert.Equal(t, "v1", out.Items[1].Version.Version.VersionID)
	assert.Equal(t, in.NextMarker, out.NextMarker)
}

func TestEncodeDeleteRequest(t *testing.T) {
	ids := []provider.ObjectIdentifier{
		{Key: "x"},
		{Key: "y", VersionID: "v1"},
	}

	body, err := EncodeDeleteRequest(ids, false)
	require.NoError(t, err)
	assert.Equal(t,
		`<?xml version="1.0" encoding="UTF-8"?>`+"\n"+
			`<Delete xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`+
			`<Object><Key>x</Key></Object>`+
			`<Object><Key>y</Key><VersionId>v1</VersionId></Object>`+
			`</Delete>`,
		string(body))

	quiet, err := EncodeDeleteRequest(ids, true)
	require.NoError(t, err)
	assert.Contains(t, string(quiet), "<Quiet>true</Quiet>")
}

func TestEncodeDeleteRequest_RejectsUnrepresentableIdentifiers(t *testing.T) {
	tests := []struct {
		name  string
		id    provider.ObjectIdentifier
		field string
	}{
		{name: "control character", id: provider.ObjectIdentifier{Key: "logs/a\x01b.txt"}, field: "Object.Key"},
		{name: "invalid UTF-8", id: provider.ObjectIdentifier{Key: "bad\xffutf8"}, field: "Object.Key"},
		{name: "noncharacter", id: provider.ObjectIdentifier{Key: "x\uFFFE"}, field: "Object.Key"},
		{name: "version id", id: provider.ObjectIdentifier{Key: "k", VersionID: "v\x00"}, field: "Object.VersionId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := EncodeDeleteRequest([]provider.ObjectIdentifier{{Key: "ok"}, tt.id}, false)
			assert.Nil(t, body)

			var nodeErr *InvalidNodeError
			require.ErrorAs(t, err, &nodeErr)
			assert.Equal(t, tt.field, nodeErr.Field)
			assert.Contains(t, nodeErr.Reason, "identifier 1")
		})
	}
}

func TestDeleteRequest_RoundTripUnicode(t *testing.T) {
	ids := []provider.ObjectIdentifier{
		{Key: "tv/Amélie (2001).mkv"},
		{Key: "tabs\tand\nnewlines"},
		{Key: "astral/\U0001F3AC.mp4"},
	}

	body, err := EncodeDeleteRequest(ids, false)
	require.NoError(t, err)

	got, _, err := DecodeDeleteRequest(body)
	require.NoError(t, err)
	assert.Equal(t, ids, got)
}

func TestValidText(t *testing.T) {
	assert.True(t, ValidText(""))
	assert.True(t, ValidText("plain/key.txt"))
	assert.True(t, ValidText("\t\r\n"))
	assert.False(t, ValidText("\x1f"))
	assert.False(t, ValidText("\xc3"))
	assert.False(t, ValidText("\uFFFF"))
}

func TestDeleteRequest_RoundTrip(t *testing.T) {
	ids := []provider.ObjectIdentifier{
		{Key: "x"},
		{Key: "y", VersionID: "v1"},
		{Key: "dir/with <special> & chars"},
	}

	for _, quiet := range []bool{false, true} {
		body, err := EncodeDeleteRequest(ids, quiet)
		require.NoError(t, err)

		gotIDs, gotQuiet, err := DecodeDeleteRequest(body)
		require.NoError(t, err)
		assert.Equal(t, ids, gotIDs)
		assert.Equal(t, quiet, gotQuiet)
	}
}

func TestDecodeDeleteRequest_MissingKey(t *testing.T) {
	_, _, err := DecodeDeleteRequest([]byte(`<Delete><Object><VersionId>v</VersionId></Object></Delete>`))

	var nodeErr *InvalidNodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "Object.Key", nodeErr.Field)
	assert.Contains(t, nodeErr.Node, "<VersionId>v</VersionId>")
}

func TestDeleteResult_RoundTrip(t *testing.T) {
	in := &provider.DeleteResult{
		Deleted: []provider.ObjectIdentifier{{Key: "x"}, {Key: "y", VersionID: "v1"}},
		Errors: []provider.DeleteError{
			{Key: "z", Code: "AccessDenied", Message: "Access Denied"},
		},
	}

	body, err := EncodeDeleteResult(in)
	require.NoError(t, err)

	out, err := DecodeDeleteResult(body)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeDeleteResult_ErrorWithoutCode(t *testing.T) {
	_, err := DecodeDeleteResult([]byte(`<DeleteResult><Error><Key>z</Key></Error></DeleteResult>`))

	var nodeErr *InvalidNodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "Error.Code", nodeErr.Field)
}

func TestDecodeErrorResponse(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchBucket</Code><Message>The specified bucket does not exist</Message><Resource>/nope</Resource><RequestId>ABC</RequestId></Error>`

	resp, err := DecodeErrorResponse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "NoSuchBucket", resp.Code)
	assert.Equal(t, "ABC", resp.RequestID)
	assert.Equal(t, "NoSuchBucket: The specified bucket does not exist", resp.Error())

	_, err = DecodeErrorResponse([]byte(`<Error></Error>`))
	var nodeErr *InvalidNodeError
	require.ErrorAs(t, err, &nodeErr)

	_, err = DecodeErrorResponse([]byte(`<html>bad gateway</html>`))
	require.ErrorAs(t, err, &nodeErr)
}

func TestErrorResponse_RoundTrip(t *testing.T) {
	body, err := EncodeErrorResponse(&ErrorResponse{Code: "SlowDown", Message: "Reduce your request rate"})
	require.NoError(t, err)

	resp, err := DecodeErrorResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "SlowDown", resp.Code)
	assert.Equal(t, "Reduce your request rate", resp.Message)
}

func TestTimeFormatting(t *testing.T) {
	ts := time.Date(2024, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-03-04T04:06:07.890Z", FormatTime(ts))

	parsed, err := ParseTime("2024-03-04T04:06:07Z")
	require.NoError(t, err)
	assert.Equal(t, 4, parsed.Hour())

	_, err = ParseTime("2024-03-04")
	assert.Error(t, err)
}
