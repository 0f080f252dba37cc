package mcpserver

// GenerationContract describes how the generate tool turns a prompt into
// committed artifacts, for LLM consumers driving pagesmith.
const GenerationContract = `# pagesmith Generation Contract

A project holds one HTML page (` + "`" + `page` + "`" + ` slot, stored as index.html) and, when
multi-artifact mode is on, a Python server script (` + "`" + `server` + "`" + ` slot, stored as app.py).

## What generate does

1. The prompt and the current artifact text are composed into one model request.
2. A snapshot labeled ` + "`" + `AI_<first 20 characters of the prompt>` + "`" + ` is taken before the model runs.
3. The model reply is cleaned: Markdown code fences are removed. In multi-artifact mode the
   reply must be a JSON object ` + "`" + `{"html": "...", "server": "..."}` + "`" + `.
4. Each slot is committed only if its cleaned text reaches the length floor
   (page: 20 characters, server: 10). Shorter output is treated as truncated and discarded.
5. If the model fails, nothing is committed and the pre-generation snapshot remains.

## Rules for prompts

- Describe the change, not the whole page. The current page is always sent along.
- Ask for a complete document; partial HTML fragments still commit but log a warning.
- Set ` + "`" + `web_search` + "`" + ` only when the request needs current information.

## History

- Every save, generation, delete and restore snapshots the previous state first.
- Unstarred snapshots older than the retention window (14 days by default) are pruned.
- Use ` + "`" + `list_history` + "`" + ` and ` + "`" + `restore_snapshot` + "`" + ` to undo.

## Assets

- Upload images or videos with ` + "`" + `upload_asset` + "`" + ` (data URI or http(s) URL). It returns an
  ` + "`" + `embedSnippet` + "`" + ` ready to paste into the page; assets are served from ` + "`" + `/uploads/` + "`" + `.
- Supported formats: png, jpg, jpeg, gif, webp, svg, mp4, webm, mov, ogg.
`
