// Package pdf genera el diario de movimientos de stock en PDF (Maroto v2).
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Título + servicio  │  Fecha de generación           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: # | Fecha | Producto | Tipo | Cantidad               │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: movimientos, unidades IN, unidades OUT             │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strconv"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/stocklink-api/internal/application/inventory"
	"github.com/jhoicas/stocklink-api/internal/domain/entity"
)

var _ inventory.JournalRenderer = (*JournalGenerator)(nil)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
	colorIn      = &props.Color{Red: 22, Green: 120, Blue: 60}
	colorOut     = &props.Color{Red: 170, Green: 40, Blue: 40}
)

const dateLayout = "2006-01-02 15:04:05"

// ── Generator ─────────────────────────────────────────────────────────────────

// JournalGenerator implementa inventory.JournalRenderer usando Maroto v2.
type JournalGenerator struct {
	serviceName string
}

// NewJournalGenerator construye el generador; serviceName aparece en el encabezado.
func NewJournalGenerator(serviceName string) *JournalGenerator {
	return &JournalGenerator{serviceName: serviceName}
}

// RenderMovementJournal genera el PDF con los movimientos en el orden recibido.
func (g *JournalGenerator) RenderMovementJournal(ctx context.Context, movements []*entity.Movement, generatedAt time.Time) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Diario de movimientos de stock", true).
		WithAuthor(g.serviceName, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(g.serviceName, generatedAt))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))

	m.AddRows(tableHeaderRow())
	if len(movements) == 0 {
		m.AddRows(row.New(8).Add(col.New(12).Add(text.New("Sin movimientos registrados", props.Text{
			Size: 8, Align: align.Center, Top: 2, Color: colorGray,
		}))))
	}
	m.AddRows(tableRows(movements)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(summaryRow(movements))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(serviceName string, generatedAt time.Time) core.Row {
	return row.New(16).Add(
		col.New(8).Add(
			text.New("DIARIO DE MOVIMIENTOS", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(serviceName, props.Text{Size: 9, Top: 8, Color: colorGray}),
		),
		col.New(4).Add(
			text.New("Generado: "+generatedAt.UTC().Format(dateLayout)+" UTC", props.Text{
				Size: 8, Align: align.Right, Top: 3, Color: colorGray,
			}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla con fondo primario.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("#", 1, align.Center),
		h("Fecha (UTC)", 4, align.Left),
		h("Producto", 3, align.Center),
		h("Tipo", 2, align.Center),
		h("Cantidad", 2, align.Right),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

func tableRows(movements []*entity.Movement) []core.Row {
	result := make([]core.Row, 0, len(movements))
	for _, mv := range movements {
		typeColor := colorOut
		if mv.IsInbound() {
			typeColor = colorIn
		}
		result = append(result, row.New(6).Add(
			col.New(1).Add(text.New(strconv.FormatInt(mv.ID, 10), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(4).Add(text.New(mv.OccurredAt.UTC().Format(dateLayout), props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(3).Add(text.New(strconv.FormatInt(mv.ProductID, 10), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(2).Add(text.New(string(mv.Direction), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Center, Top: 1, Color: typeColor,
			})),
			col.New(2).Add(text.New(strconv.FormatInt(mv.Quantity, 10), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

func summaryRow(movements []*entity.Movement) core.Row {
	var in, out int64
	for _, mv := range movements {
		if mv.IsInbound() {
			in += mv.Quantity
		} else {
			out += mv.Quantity
		}
	}
	summary := fmt.Sprintf("Movimientos: %d   Unidades IN: %d   Unidades OUT: %d", len(movements), in, out)
	return row.New(10).Add(col.New(12).Add(text.New(summary, props.Text{
		Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: 3,
	})))
}
