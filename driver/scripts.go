// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package driver

import (
	"encoding/json"
	"fmt"
	"strings"
)

// elementFn locates elements for a Selector and performs one small operation
// on the nth match. Keeping every DOM query in a single function means a
// selector always resolves the same way no matter which operation asked.
const elementFn = `function(sel, nth, op, arg) {
	function find(sel) {
		var nodes = document.querySelectorAll(sel.css || '*');
		var out = [];
		for (var i = 0; i < nodes.length; i++) {
			var el = nodes[i];
			var text = (el.textContent || '').trim();
			if (sel.hasText && text.indexOf(sel.hasText) < 0) continue;
			if (sel.text) {
				if (text !== sel.text) continue;
				var inner = false;
				for (var j = 0; j < el.children.length; j++) {
					if ((el.children[j].textContent || '').trim() === sel.text) { inner = true; break; }
				}
				if (inner) continue;
			}
			out.push(el);
		}
		return out;
	}
	function visible(el) {
		var style = window.getComputedStyle(el);
		var rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0 && style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
	}
	var all = find(sel);
	var el = all[nth];
	switch (op) {
	case 'count':
		return all.length;
	case 'visible':
		return !!el && visible(el);
	case 'text':
		return el ? (el.textContent || '') : null;
	case 'texts':
		return all.map(function(e) { return e.textContent || ''; });
	case 'box':
		if (!el) return null;
		if (arg) el.scrollIntoView({block: 'center', inline: 'center'});
		if (!visible(el)) return null;
		var r = el.getBoundingClientRect();
		return {x: r.left, y: r.top, width: r.width, height: r.height};
	case 'focus':
		if (!el) return false;
		el.focus();
		if (arg === 'clear') {
			if ('value' in el) el.value = '';
			el.dispatchEvent(new Event('input', {bubbles: true}));
		}
		return true;
	}
	return null;
}`

// CallExpression renders a call of the JavaScript function source fn with
// args marshaled as JSON literals.
func CallExpression(fn string, args []any) (string, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("marshal argument %d: %w", i, err)
		}
		parts[i] = string(b)
	}
	return "(" + fn + ")(" + strings.Join(parts, ", ") + ")", nil
}
