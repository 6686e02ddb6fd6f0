package emit

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/MarcinKonowalczyk/bfc/bf"
)

const cPrelude = `#include <stdio.h>
#include <stdlib.h>

static unsigned char lastout = '\n';

struct node {
    unsigned char value;
    struct node *left;
    struct node *right;
};

static struct node *current;

static struct node *new_node(struct node *left, struct node *right) {
    struct node *n = malloc(sizeof(struct node));
    if(!n) {
        if(lastout != '\n') putchar('\n');
        printf("Error: failed to allocate memory for tape: resource exhausted\n");
        lastout = '\n';
        exit(1);
    }
    n->value = 0;
    n->left = left;
    n->right = right;
    return n;
}

static void left(int n) {
    for(int i = 0; i < n; i++) {
        if(!current->left)
            current->left = new_node(NULL, current);
        current = current->left;
    }
}

static void right(int n) {
    for(int i = 0; i < n; i++) {
        if(!current->right)
            current->right = new_node(current, NULL);
        current = current->right;
    }
}

static void out(int n) {
    for(int i = 0; i < n; i++) {
        lastout = current->value;
        putchar(lastout);
    }
}

static void in(int n) {
    for(int i = 0; i < n; i++) {
        if(lastout != '\n') putchar('\n');
        putchar(':');
        fflush(stdout);
        int c = getchar();
        if(c == EOF) exit(0);
        current->value = (unsigned char)c;
        while(c != '\n' && c != EOF)
            c = getchar();
    }
}

static void cleanup(void) {
    while(current->left)
        current = current->left;
    while(current) {
        struct node *next = current->right;
        free(current);
        current = next;
    }
    if(lastout != '\n') putchar('\n');
}

int main(void) {
    current = new_node(NULL, NULL);
    atexit(cleanup);
`

type cBackend struct{}

func (cBackend) Ext() string { return ".c" }

func (cBackend) Emit(ops []bf.Op) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(cPrelude)
	depth := 1
	line := func(format string, args ...any) {
		buf.WriteString(strings.Repeat("    ", depth))
		fmt.Fprintf(&buf, format, args...)
		buf.WriteByte('\n')
	}
	for _, op := range ops {
		switch op.Cmd {
		case bf.Increment:
			if n := wrap(op.Count); n != 0 {
				line("current->value += %d;", n)
			}
		case bf.Decrement:
			if n := wrap(op.Count); n != 0 {
				line("current->value -= %d;", n)
			}
		case bf.Left:
			line("left(%d);", op.Count)
		case bf.Right:
			line("right(%d);", op.Count)
		case bf.Output:
			line("out(%d);", op.Count)
		case bf.Input:
			line("in(%d);", op.Count)
		case bf.LoopStart:
			line("while(current->value) {")
			depth++
		case bf.LoopEnd:
			depth--
			line("}")
		default:
			return nil, fmt.Errorf("unexpected command %q", op.Cmd)
		}
	}
	buf.WriteString("    return 0;\n}\n")
	return buf.Bytes(), nil
}
