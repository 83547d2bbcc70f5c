package audit

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drususdark/audit-inventory-mvp/internal/extract"
	"github.com/drususdark/audit-inventory-mvp/internal/model"
	"github.com/drususdark/audit-inventory-mvp/internal/scoring"
	"github.com/drususdark/audit-inventory-mvp/internal/store"
)

type fakeScorer struct {
	mu    sync.Mutex
	texts []string
	resp  *scoring.Response
}

func (f *fakeScorer) ScoreReport(_ context.Context, text string) scoring.Response {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.resp != nil {
		return *f.resp
	}
	return scoring.ScoreHeuristically(text)
}

type fakeExtractor struct {
	text     string
	err      error
	path     string
	fileType extract.FileType
	existed  bool
}

func (f *fakeExtractor) ExtractText(_ context.Context, path string, fileType extract.FileType) (string, error) {
	f.path = path
	f.fileType = fileType
	_, err := os.Stat(path)
	f.existed = err == nil
	return f.text, f.err
}

func newTestService(t *testing.T, scorer scoring.Scorer, ext TextExtractor) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return New(st, scorer, ext, WithTempDir(t.TempDir()), WithClock(clock)), st
}

func aiResponse(total float64) *scoring.Response {
	return &scoring.Response{
		Success:  true,
		Source:   scoring.SourceAI,
		Provider: "deepseek",
		Result: &scoring.Result{
			LocalName:  "Sucursal Centro",
			TotalScore: total,
			CriteriaScores: []scoring.CriterionScore{
				{Criterion: "Exactitud de Inventario", Weight: 30, Score: 28, Justification: "ok"},
			},
		},
	}
}

func TestCreateReport_Text(t *testing.T) {
	scorer := &fakeScorer{resp: aiResponse(87.6)}
	svc, st := newTestService(t, scorer, &fakeExtractor{})
	ctx := context.Background()

	l, err := svc.CreateLocal(ctx, "  Centro ", "")
	require.NoError(t, err)
	assert.Equal(t, "Centro", l.Name)

	out, err := svc.CreateReport(ctx, UploadInput{
		LocalID:   l.ID,
		InputType: model.InputTypeText,
		Content:   "Conteo sin diferencias",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Conteo sin diferencias"}, scorer.texts)
	assert.Equal(t, 88, out.Score.AutoScore)
	assert.Equal(t, 88, out.Score.FinalScore)
	assert.Equal(t, "AI", out.Score.AISource)
	assert.Equal(t, "deepseek", out.Score.AIProvider)
	assert.Equal(t, scoring.SourceAI, out.Scoring.Source)
	assert.Equal(t, "Conteo sin diferencias", out.Report.RawContent)
	assert.True(t, out.Report.ReportDate.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))

	sc, err := svc.GetScore(ctx, out.Report.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"criterion":"Exactitud de Inventario","weight":30,"score":28,"justification":"ok"}]`, string(sc.CriteriaScores))

	entries, err := st.ListAuditEntries(ctx, out.Report.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.AuditReportCreated, entries[0].Action)
	assert.Equal(t, "Informe creado (text). Puntuación automática: 88 (AI)", entries[0].Details)
}

func TestCreateReport_HeuristicFallback(t *testing.T) {
	svc, _ := newTestService(t, &fakeScorer{}, &fakeExtractor{})
	ctx := context.Background()

	l, err := svc.CreateLocal(ctx, "Centro", "")
	require.NoError(t, err)

	out, err := svc.CreateReport(ctx, UploadInput{
		LocalID:   l.ID,
		InputType: model.InputTypeText,
		Content:   "Hay faltantes y productos vencidos",
	})
	require.NoError(t, err)
	assert.Equal(t, 80, out.Score.AutoScore)
	assert.Equal(t, string(scoring.SourceHeuristicFallback), out.Score.AISource)
	assert.Empty(t, out.Score.AIProvider)
}

func TestCreateReport_FailedResponseFallsBack(t *testing.T) {
	svc, _ := newTestService(t, &fakeScorer{resp: &scoring.Response{Success: false, Error: "down"}}, &fakeExtractor{})
	ctx := context.Background()

	l, err := svc.CreateLocal(ctx, "Centro", "")
	require.NoError(t, err)

	out, err := svc.CreateReport(ctx, UploadInput{LocalID: l.ID, InputType: model.InputTypeText, Content: "todo bien"})
	require.NoError(t, err)
	assert.Equal(t, scoring.SourceHeuristicFallback, out.Scoring.Source)
	assert.Equal(t, "down", out.Scoring.Error)
	assert.Equal(t, 100, out.Score.AutoScore)
}

func TestCreateReport_File(t *testing.T) {
	ext := &fakeExtractor{text: "\n=== HOJA: Conteo ===\n\nArroz | 10\n"}
	scorer := &fakeScorer{resp: aiResponse(70)}
	svc, _ := newTestService(t, scorer, ext)
	ctx := context.Background()

	l, err := svc.CreateLocal(ctx, "Centro", "")
	require.NoError(t, err)

	out, err := svc.CreateReport(ctx, UploadInput{
		LocalID:    l.ID,
		InputType:  model.InputTypeExcel,
		Content:    base64.StdEncoding.EncodeToString([]byte("PK fake workbook")),
		FileName:   "conteo.XLSX",
		ReportDate: time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, extract.FileTypeExcel, ext.fileType)
	assert.True(t, ext.existed, "temp file should exist during extraction")
	assert.Equal(t, ".xlsx", filepath.Ext(ext.path))
	_, statErr := os.Stat(ext.path)
	assert.True(t, os.IsNotExist(statErr), "temp file should be removed")

	assert.Equal(t, []string{ext.text}, scorer.texts)
	assert.Equal(t, ext.text, out.Report.ExtractedText)
	assert.Equal(t, "conteo.XLSX", out.Report.FileName)
	assert.Empty(t, out.Report.RawContent)
	assert.True(t, out.Report.ReportDate.Equal(time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)))
}

func TestCreateReport_LegacyWorkbookRejected(t *testing.T) {
	ext := &fakeExtractor{text: "never read"}
	scorer := &fakeScorer{}
	svc, st := newTestService(t, scorer, ext)
	ctx := context.Background()

	l, err := svc.CreateLocal(ctx, "Centro", "")
	require.NoError(t, err)

	_, err = svc.CreateReport(ctx, UploadInput{
		LocalID:   l.ID,
		InputType: model.InputTypeExcel,
		Content:   base64.StdEncoding.EncodeToString([]byte{0xD0, 0xCF, 0x11, 0xE0}),
		FileName:  "conteo.xls",
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, extract.ErrUnsupportedType))
	assert.Empty(t, ext.path, "extractor should not be called")
	assert.Empty(t, scorer.texts)

	reports, err := st.ListReports(ctx, store.ReportFilter{})
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestCreateReport_DataURL(t *testing.T) {
	ext := &fakeExtractor{text: "pdf text"}
	svc, _ := newTestService(t, &fakeScorer{}, ext)
	ctx := context.Background()

	l, err := svc.CreateLocal(ctx, "Centro", "")
	require.NoError(t, err)

	_, err = svc.CreateReport(ctx, UploadInput{
		LocalID:   l.ID,
		InputType: model.InputTypePDF,
		Content:   "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
	})
	require.NoError(t, err)
	assert.Equal(t, extract.FileTypePDF, ext.fileType)
	assert.Equal(t, ".pdf", filepath.Ext(ext.path))
}

func TestCreateReport_ExtractionFailure(t *testing.T) {
	extErr := &extract.ExtractionError{Type: extract.FileTypePDF, Path: "x.pdf", Err: eris.New("bad xref")}
	ext := &fakeExtractor{err: extErr}
	scorer := &fakeScorer{}
	svc, st := newTestService(t, scorer, ext)
	ctx := context.Background()

	l, err := svc.CreateLocal(ctx, "Centro", "")
	require.NoError(t, err)

	_, err = svc.CreateReport(ctx, UploadInput{
		LocalID:   l.ID,
		InputType: model.InputTypePDF,
		Content:   base64.StdEncoding.EncodeToString([]byte("%PDF")),
	})
	require.Error(t, err)

	var target *extract.ExtractionError
	assert.True(t, errors.As(err, &target))
	assert.Empty(t, scorer.texts)
	_, statErr := os.Stat(ext.path)
	assert.True(t, os.IsNotExist(statErr), "temp file should be removed after a failure")

	reports, err := st.ListReports(ctx, store.ReportFilter{})
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestCreateReport_Validation(t *testing.T) {
	svc, _ := newTestService(t, &fakeScorer{}, &fakeExtractor{})
	ctx := context.Background()

	l, err := svc.CreateLocal(ctx, "Centro", "")
	require.NoError(t, err)

	tests := []struct {
		name  string
		in    UploadInput
		field string
	}{
		{name: "missing local", in: UploadInput{InputType: model.InputTypeText, Content: "x"}, field: "local_id"},
		{name: "bad type", in: UploadInput{LocalID: l.ID, InputType: "docx", Content: "x"}, field: "input_type"},
		{name: "empty content", in: UploadInput{LocalID: l.ID, InputType: model.InputTypeText, Content: "  "}, field: "content"},
		{name: "bad base64", in: UploadInput{LocalID: l.ID, InputType: model.InputTypePDF, Content: "%%%"}, field: "content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateReport(ctx, tt.in)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCreateReport_UnknownLocal(t *testing.T) {
	svc, _ := newTestService(t, &fakeScorer{}, &fakeExtractor{})

	_, err := svc.CreateReport(context.Background(), UploadInput{LocalID: 404, InputType: model.InputTypeText, Content: "x"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, store.ErrNotFound))
}

func TestOverrideScore(t *testing.T) {
	svc, st := newTestService(t, &fakeScorer{resp: aiResponse(90)}, &fakeExtractor{})
	ctx := context.Background()

	l, err := svc.CreateLocal(ctx, "Centro", "")
	require.NoError(t, err)
	out, err := svc.CreateReport(ctx, UploadInput{LocalID: l.ID, InputType: model.InputTypeText, Content: "ok"})
	require.NoError(t, err)

	sc, err := svc.OverrideScore(ctx, out.Report.ID, 60, "")
	require.NoError(t, err)
	assert.Equal(t, 60, sc.FinalScore)
	assert.Equal(t, 90, sc.AutoScore)
	assert.True(t, sc.IsOverridden)

	entries, err := svc.AuditLog(ctx, out.Report.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Puntuación modificada a 60. Razón: No especificada", entries[1].Details)

	_, err = svc.OverrideScore(ctx, out.Report.ID, 55, "  recuento manual ")
	require.NoError(t, err)
	entries, err = st.ListAuditEntries(ctx, out.Report.ID)
	require.NoError(t, err)
	assert.Equal(t, "Puntuación modificada a 55. Razón: recuento manual", entries[2].Details)
}

func TestOverrideScore_Invalid(t *testing.T) {
	svc, _ := newTestService(t, &fakeScorer{}, &fakeExtractor{})

	for _, v := range []int{-1, 101} {
		_, err := svc.OverrideScore(context.Background(), 1, v, "")
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "final_score", verr.Field)
	}

	_, err := svc.OverrideScore(context.Background(), 1, 50, "")
	assert.True(t, eris.Is(err, store.ErrNotFound))
}

func TestRanking(t *testing.T) {
	scorer := &fakeScorer{}
	svc, _ := newTestService(t, scorer, &fakeExtractor{})
	ctx := context.Background()

	alfa, err := svc.CreateLocal(ctx, "Alfa", "")
	require.NoError(t, err)
	beta, err := svc.CreateLocal(ctx, "Beta", "")
	require.NoError(t, err)
	gamma, err := svc.CreateLocal(ctx, "Gamma", "")
	require.NoError(t, err)
	_, err = svc.CreateLocal(ctx, "Delta", "")
	require.NoError(t, err)

	upload := func(localID int64, day int, total float64) int64 {
		scorer.resp = aiResponse(total)
		out, err := svc.CreateReport(ctx, UploadInput{
			LocalID:    localID,
			InputType:  model.InputTypeText,
			Content:    "informe",
			ReportDate: time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		return out.Report.ID
	}

	upload(alfa.ID, 1, 80)
	upload(alfa.ID, 3, 91)
	upload(alfa.ID, 2, 90)
	upload(beta.ID, 1, 87)
	gammaReport := upload(gamma.ID, 1, 95)
	_, err = svc.OverrideScore(ctx, gammaReport, 87, "ajuste")
	require.NoError(t, err)

	ranking, err := svc.Ranking(ctx)
	require.NoError(t, err)
	require.Len(t, ranking, 4)

	assert.Equal(t, "Alfa", ranking[0].Local.Name)
	assert.Equal(t, 87.0, ranking[0].AvgScore)
	assert.Equal(t, 3, ranking[0].ReportsCount)
	require.NotNil(t, ranking[0].LastScore)
	assert.Equal(t, 91.0, *ranking[0].LastScore)

	// Ties break by name.
	assert.Equal(t, "Beta", ranking[1].Local.Name)
	assert.Equal(t, "Gamma", ranking[2].Local.Name)
	assert.Equal(t, 87.0, ranking[2].AvgScore)

	assert.Equal(t, "Delta", ranking[3].Local.Name)
	assert.Equal(t, 0.0, ranking[3].AvgScore)
	assert.Nil(t, ranking[3].LastScore)
	assert.Zero(t, ranking[3].ReportsCount)
}

func TestRankLocal_RoundsToOneDecimal(t *testing.T) {
	reports := []model.ReportWithScore{
		{Score: &model.Score{FinalScore: 90}},
		{Score: &model.Score{FinalScore: 85}},
		{Score: &model.Score{FinalScore: 86}},
		{},
	}
	entry := rankLocal(model.Local{Name: "X"}, reports)
	assert.Equal(t, 4, entry.ReportsCount)
	assert.Equal(t, 87.0, entry.AvgScore)
	assert.Equal(t, 90.0, *entry.LastScore)

	entry = rankLocal(model.Local{}, []model.ReportWithScore{
		{Score: &model.Score{FinalScore: 90}},
		{Score: &model.Score{FinalScore: 85}},
		{Score: &model.Score{FinalScore: 85}},
	})
	assert.Equal(t, 86.7, entry.AvgScore)
}

func TestLocalDetail(t *testing.T) {
	scorer := &fakeScorer{}
	svc, _ := newTestService(t, scorer, &fakeExtractor{})
	ctx := context.Background()

	l, err := svc.CreateLocal(ctx, "Centro", "Calle 1")
	require.NoError(t, err)

	for _, in := range []struct {
		day   int
		total float64
	}{{10, 70}, {2, 60}, {20, 90}} {
		scorer.resp = aiResponse(in.total)
		_, err := svc.CreateReport(ctx, UploadInput{
			LocalID:    l.ID,
			InputType:  model.InputTypeText,
			Content:    "informe",
			ReportDate: time.Date(2025, 2, in.day, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	detail, err := svc.LocalDetail(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Calle 1", detail.Local.Address)
	require.Len(t, detail.Reports, 3)
	assert.Equal(t, 20, detail.Reports[0].Report.ReportDate.Day())

	require.Len(t, detail.Evolution, 3)
	assert.Equal(t, []float64{60, 70, 90}, []float64{detail.Evolution[0].Score, detail.Evolution[1].Score, detail.Evolution[2].Score})

	_, err = svc.LocalDetail(ctx, 999)
	assert.True(t, eris.Is(err, store.ErrNotFound))
}

func TestLocalDetail_Empty(t *testing.T) {
	svc, _ := newTestService(t, &fakeScorer{}, &fakeExtractor{})
	ctx := context.Background()

	l, err := svc.CreateLocal(ctx, "Centro", "")
	require.NoError(t, err)

	detail, err := svc.LocalDetail(ctx, l.ID)
	require.NoError(t, err)
	assert.NotNil(t, detail.Reports)
	assert.NotNil(t, detail.Evolution)
	assert.Empty(t, detail.Reports)
}

func TestCreateLocal_Validation(t *testing.T) {
	svc, _ := newTestService(t, &fakeScorer{}, &fakeExtractor{})
	_, err := svc.CreateLocal(context.Background(), "   ", "x")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "name", verr.Field)
}

func TestPreviewScore(t *testing.T) {
	scorer := &fakeScorer{}
	svc, st := newTestService(t, scorer, &fakeExtractor{})
	ctx := context.Background()

	resp, err := svc.PreviewScore(ctx, "faltantes")
	require.NoError(t, err)
	assert.Equal(t, 90.0, resp.Result.TotalScore)

	scores, err := st.ListScores(ctx)
	require.NoError(t, err)
	assert.Empty(t, scores)

	_, err = svc.PreviewScore(ctx, "")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestScoreFile(t *testing.T) {
	ext := &fakeExtractor{text: "pdf text"}
	scorer := &fakeScorer{}
	svc, _ := newTestService(t, scorer, ext)
	ctx := context.Background()
	dir := t.TempDir()

	txt := filepath.Join(dir, "informe.txt")
	require.NoError(t, os.WriteFile(txt, []byte("texto plano"), 0644))
	_, err := svc.ScoreFile(ctx, txt)
	require.NoError(t, err)

	pdf := filepath.Join(dir, "informe.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0644))
	_, err = svc.ScoreFile(ctx, pdf)
	require.NoError(t, err)
	assert.Equal(t, pdf, ext.path)

	assert.Equal(t, []string{"texto plano", "pdf text"}, scorer.texts)

	_, err = svc.ScoreFile(ctx, filepath.Join(dir, "missing.txt"))
	assert.True(t, eris.Is(err, extract.ErrNotFound))

	xls := filepath.Join(dir, "conteo.xls")
	require.NoError(t, os.WriteFile(xls, []byte{0xD0, 0xCF, 0x11, 0xE0}, 0644))
	_, err = svc.ScoreFile(ctx, xls)
	assert.True(t, eris.Is(err, extract.ErrUnsupportedType))
	assert.Len(t, scorer.texts, 2, "legacy workbook must not be scored as text")
}

func TestImportFile(t *testing.T) {
	ext := &fakeExtractor{text: "hoja"}
	svc, _ := newTestService(t, &fakeScorer{}, ext)
	ctx := context.Background()
	dir := t.TempDir()

	l, err := svc.CreateLocal(ctx, "Centro", "")
	require.NoError(t, err)

	txt := filepath.Join(dir, "informe.txt")
	require.NoError(t, os.WriteFile(txt, []byte("sin novedades"), 0644))
	out, err := svc.ImportFile(ctx, l.ID, txt, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, model.InputTypeText, out.Report.InputType)
	assert.Equal(t, "sin novedades", out.Report.RawContent)

	xlsx := filepath.Join(dir, "conteo.xlsx")
	require.NoError(t, os.WriteFile(xlsx, []byte("PK"), 0644))
	out, err = svc.ImportFile(ctx, l.ID, xlsx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, model.InputTypeExcel, out.Report.InputType)
	assert.Equal(t, "conteo.xlsx", out.Report.FileName)
	assert.Equal(t, extract.FileTypeExcel, ext.fileType)

	_, err = svc.ImportFile(ctx, l.ID, filepath.Join(dir, "nope.pdf"), time.Time{})
	assert.True(t, eris.Is(err, extract.ErrNotFound))

	xls := filepath.Join(dir, "conteo.xls")
	require.NoError(t, os.WriteFile(xls, []byte{0xD0, 0xCF, 0x11, 0xE0}, 0644))
	_, err = svc.ImportFile(ctx, l.ID, xls, time.Time{})
	assert.True(t, eris.Is(err, extract.ErrUnsupportedType))
}
