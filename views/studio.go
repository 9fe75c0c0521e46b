package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Studio renders the full studio shell with the active panel.
func Studio(p Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b htmlBuf
		head(&b, p.Title, p.CSRF)
		b.raw(`<body`)
		b.attr("data-tab", p.Tab)
		b.raw(`><header class="shell-header"><h1>`)
		b.text(p.Title)
		b.raw(`</h1><nav class="tabs">`)
		for _, t := range p.Tabs {
			b.formOpen("/studio/tab/", p.CSRF, "class", "tab-form")
			b.raw(`<input type="hidden" name="tab"`)
			b.attr("value", t.ID)
			b.raw(`>`)
			b.button(t.Label, TabClass(t.Active), false)
			b.raw(`</form>`)
		}
		b.raw(`</nav></header>`)

		if p.Banner != nil {
			b.raw(`<div role="status"`)
			b.attr("class", BannerClass(p.Banner.Kind))
			b.raw(`>`)
			b.text(p.Banner.Message)
			b.raw(`</div>`)
		}

		b.raw(`<main class="panel">`)
		switch p.Tab {
		case "editor":
			editorPanel(&b, p.CSRF, p.Editor)
		case "cube":
			cubePanel(&b, p.CSRF, p.Cube)
		case "voice":
			voicePanel(&b, p.CSRF)
		case "schedule":
			schedulePanel(&b, p.CSRF, p.Timezone, p.Posts)
		case "log":
			logPanel(&b, p.Events)
		case "test":
			testPanel(&b, p.CSRF, p.Tasks)
		}
		b.raw(`</main></body></html>`)

		_, err := w.Write(b.Bytes())
		return err
	})
}

// NotFound is the 404 page.
func NotFound() templ.Component {
	return errorPage("404", "Página no encontrada")
}

// ServerError is the 500 page.
func ServerError() templ.Component {
	return errorPage("500", "Algo salió mal. Inténtalo de nuevo.")
}

func errorPage(code, msg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b htmlBuf
		head(&b, code, "")
		b.raw(`<body><main class="panel error-page"><h1>`)
		b.text(code)
		b.raw(`</h1><p>`)
		b.text(msg)
		b.raw(`</p><p><a href="/">Volver al estudio</a></p></main></body></html>`)
		_, err := w.Write(b.Bytes())
		return err
	})
}

func head(b *htmlBuf, title, csrf string) {
	b.raw(`<!doctype html><html lang="es"><head><meta charset="utf-8">`)
	b.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	if csrf != "" {
		b.raw(`<meta name="csrf-token"`)
		b.attr("content", csrf)
		b.raw(`>`)
	}
	b.raw(`<title>`)
	b.text(title)
	b.raw(`</title><link rel="stylesheet" href="/public/studio.css">`)
	b.raw(`<script src="/public/studio.js" defer></script></head>`)
}

func editorPanel(b *htmlBuf, csrf string, e EditorView) {
	b.raw(`<section class="editor"><h2>Editor de fotos</h2>`)
	b.formOpen("/studio/editor/upload/", csrf, "enctype", "multipart/form-data")
	b.raw(`<label>Imagen <input type="file" name="image" accept="image/*" required></label>`)
	b.button("Cargar", "btn", false)
	b.raw(`</form>`)

	if !e.HasImage {
		b.raw(`<p class="hint">Carga una imagen para empezar.</p></section>`)
		return
	}

	b.raw(`<figure class="stage"><img id="editor-source" alt="Imagen cargada"`)
	b.attr("src", e.Source)
	b.attr("style", fmt.Sprintf("filter: %s; transform: translate(%spx, %spx) scale(%s) rotate(%sdeg)",
		e.FilterCSS, formatFloat(e.OffsetX), formatFloat(e.OffsetY), formatFloat(e.Zoom), formatFloat(e.Rotation)))
	b.raw(`><figcaption>`)
	b.text(fmt.Sprintf("%d × %d px", e.Width, e.Height))
	b.raw(`</figcaption></figure>`)

	b.formOpen("/studio/editor/view/", csrf, "class", "row")
	numberInput(b, "Desplazamiento X", "offset_x", formatFloat(e.OffsetX), "", "", "1")
	numberInput(b, "Desplazamiento Y", "offset_y", formatFloat(e.OffsetY), "", "", "1")
	rangeInput(b, "Zoom", "zoom", formatFloat(e.Zoom), "1", "3", "0.1")
	b.button("Aplicar vista", "btn", false)
	b.raw(`</form>`)

	crop := Crop{Width: e.Width, Height: e.Height}
	if e.Crop != nil {
		crop = *e.Crop
	}
	b.formOpen("/studio/editor/crop/", csrf, "class", "row")
	numberInput(b, "X", "x", fmt.Sprint(crop.X), "0", "", "1")
	numberInput(b, "Y", "y", fmt.Sprint(crop.Y), "0", "", "1")
	numberInput(b, "Ancho", "width", fmt.Sprint(crop.Width), "1", "", "1")
	numberInput(b, "Alto", "height", fmt.Sprint(crop.Height), "1", "", "1")
	b.button("Confirmar recorte", "btn", false)
	b.raw(`</form>`)

	b.formOpen("/studio/editor/adjust/", csrf, "class", "row")
	rangeInput(b, "Rotación", "rotation", formatFloat(e.Rotation), "-180", "180", "1")
	b.raw(`<label>Filtro <select name="filter">`)
	for _, o := range e.Filters {
		b.raw(`<option`)
		b.attr("value", o.Value)
		b.flag("selected", o.Selected)
		b.raw(`>`)
		b.text(o.Label)
		b.raw(`</option>`)
	}
	b.raw(`</select></label>`)
	b.button("Aplicar ajustes", "btn", false)
	b.raw(`</form>`)

	b.raw(`<div class="row">`)
	b.formOpen("/studio/editor/preview/", csrf)
	b.button("Vista previa", "btn btn-primary", !e.CanRender)
	b.raw(`</form>`)
	b.formOpen("/studio/editor/export/", csrf)
	b.button("Exportar PNG", "btn", !e.CanRender)
	b.raw(`</form></div>`)

	if e.PreviewURL != "" {
		b.raw(`<figure class="preview"><img id="editor-preview" alt="Vista previa"`)
		b.attr("src", e.PreviewURL)
		b.raw(`><figcaption>Vista previa</figcaption></figure>`)
	}
	b.raw(`</section>`)
}

func numberInput(b *htmlBuf, label, name, value, lo, hi, step string) {
	input(b, "number", label, name, value, lo, hi, step)
}

func rangeInput(b *htmlBuf, label, name, value, lo, hi, step string) {
	input(b, "range", label, name, value, lo, hi, step)
}

func input(b *htmlBuf, typ, label, name, value, lo, hi, step string) {
	b.raw(`<label>`)
	b.text(label)
	b.raw(` <input`)
	b.attr("type", typ)
	b.attr("name", name)
	b.attr("value", value)
	if lo != "" {
		b.attr("min", lo)
	}
	if hi != "" {
		b.attr("max", hi)
	}
	if step != "" {
		b.attr("step", step)
	}
	b.raw(`></label>`)
}

func cubePanel(b *htmlBuf, csrf string, c CubeView) {
	b.raw(`<section class="cube"><h2>Vista 3D</h2>`)
	if !c.Mounted {
		b.raw(`<p class="hint">La escena está detenida.</p>`)
		b.formOpen("/studio/cube/mount/", csrf)
		b.button("Iniciar escena", "btn", false)
		b.raw(`</form></section>`)
		return
	}
	b.raw(`<img id="cube-frame" src="/studio/cube/frame" width="240" height="240" alt="Cubo de marca"`)
	b.attr("data-fps", fmt.Sprint(c.FPS))
	b.raw(`><p id="cube-status" class="hint">`)
	if c.Ready {
		b.text("Modelo listo")
	} else {
		b.text("Cargando modelo…")
	}
	b.raw(`</p>`)
	b.formOpen("/studio/cube/unmount/", csrf)
	b.button("Detener escena", "btn", false)
	b.raw(`</form></section>`)
}

func voicePanel(b *htmlBuf, csrf string) {
	b.raw(`<section class="voice"><h2>Comando de voz</h2>`)
	b.raw(`<p class="hint">Escribe lo que dirías, por ejemplo «programar publicación».</p>`)
	b.formOpen("/studio/voice/", csrf, "class", "row")
	b.raw(`<input type="text" name="text" maxlength="500" autocomplete="off" required placeholder="Di un comando">`)
	b.button("Enviar", "btn btn-primary", false)
	b.raw(`</form></section>`)
}

func schedulePanel(b *htmlBuf, csrf, tz string, posts []PostView) {
	b.raw(`<section class="schedule"><h2>Programar publicación</h2>`)
	b.formOpen("/studio/posts/", csrf, "class", "stack")
	b.raw(`<label>Título <input type="text" name="title" maxlength="200"></label>`)
	b.raw(`<label>Descripción <textarea name="description" rows="3"></textarea></label>`)
	b.raw(`<label>Fecha y hora <input type="datetime-local" name="scheduled_at" required></label>`)
	b.raw(`<input type="hidden" name="tz" data-client-tz`)
	b.attr("value", tz)
	b.raw(`>`)
	b.button("Guardar", "btn btn-primary", false)
	b.raw(`</form>`)

	if len(posts) == 0 {
		b.raw(`<p class="hint">Todavía no hay publicaciones.</p></section>`)
		return
	}
	b.raw(`<ul class="posts">`)
	for _, p := range posts {
		b.raw(`<li`)
		b.attr("data-id", p.ID)
		b.raw(`><strong>`)
		b.text(p.Title)
		b.raw(`</strong> <time>`)
		b.text(p.ScheduledAt)
		b.raw(`</time>`)
		if p.Description != "" {
			b.raw(`<div class="desc">`)
			b.raw(RichText(p.Description))
			b.raw(`</div>`)
		}
		b.raw(`<small>Creada `)
		b.text(p.CreatedAt)
		b.raw(`</small></li>`)
	}
	b.raw(`</ul></section>`)
}

func logPanel(b *htmlBuf, events []EventView) {
	b.raw(`<section class="log"><h2>Registro de eventos</h2>`)
	b.raw(`<p><a class="btn" href="/studio/log/export" download>Exportar JSON</a></p>`)
	if len(events) == 0 {
		b.raw(`<p class="hint">Sin eventos.</p></section>`)
		return
	}
	b.raw(`<ol class="events">`)
	for _, e := range events {
		b.raw(`<li><span class="at">`)
		b.text(e.Relative)
		b.raw(`</span> <code>`)
		b.text(e.Type)
		b.raw(`</code>`)
		if e.Meta != "" {
			b.raw(` <span class="meta">`)
			b.text(e.Meta)
			b.raw(`</span>`)
		}
		b.raw(`</li>`)
	}
	b.raw(`</ol></section>`)
}

func testPanel(b *htmlBuf, csrf string, tasks []TaskView) {
	b.raw(`<section class="test"><h2>Modo prueba</h2>`)
	b.raw(`<p><button type="button" id="play-sound" class="btn" data-src="/studio/sound.wav">Reproducir sonido</button></p>`)
	b.raw(`<table class="tasks"><thead><tr><th>Tarea</th><th>Estado</th><th>Tiempo</th><th></th></tr></thead><tbody>`)
	for _, t := range tasks {
		b.raw(`<tr`)
		b.attr("data-task", t.Key)
		b.raw(`><td>`)
		b.text(t.Label)
		b.raw(`</td><td class="status">`)
		b.text(t.Status)
		b.raw(`</td><td class="elapsed">`)
		b.text(t.Elapsed)
		b.raw(`</td><td class="actions">`)
		b.formOpen("/studio/tasks/"+PathEscape(t.Key)+"/start/", csrf)
		b.button("Iniciar", "btn", t.Running)
		b.raw(`</form>`)
		b.formOpen("/studio/tasks/"+PathEscape(t.Key)+"/reset/", csrf)
		b.button("Reiniciar", "btn", false)
		b.raw(`</form></td></tr>`)
	}
	b.raw(`</tbody></table></section>`)
}
