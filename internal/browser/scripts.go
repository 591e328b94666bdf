package browser

import (
	"encoding/json"
	"fmt"
)

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// json.Marshal never fails for strings.
		panic(err)
	}
	return string(b)
}

func countScript(selector string) string {
	return fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))
}

// lastElementScript reads prop from the last element matching selector.
func lastElementScript(selector, prop string) string {
	return fmt.Sprintf(`(() => {
	const els = document.querySelectorAll(%s);
	if (els.length === 0) return {found: false, value: ""};
	return {found: true, value: els[els.length - 1].%s || ""};
})()`, jsString(selector), prop)
}

// selectContentScript focuses the element and clears or selects its current
// content so that the next text insertion overwrites it.
func selectContentScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	el.focus();
	if ('value' in el) {
		el.value = '';
		el.dispatchEvent(new Event('input', {bubbles: true}));
		return true;
	}
	const range = document.createRange();
	range.selectNodeContents(el);
	const sel = window.getSelection();
	sel.removeAllRanges();
	sel.addRange(range);
	return true;
})()`, jsString(selector))
}

type lastElementResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}
